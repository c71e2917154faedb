package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
)

// rightNames maps the right names accepted in config files to their flag bits.
var rightNames = map[string]vio.OpenFlags{
	"read":    vio.OpenRightReadable,
	"write":   vio.OpenRightWritable,
	"execute": vio.OpenRightExecutable,
}

// ParseRights folds a list of right names into connection flags.
func ParseRights(names []string) (vio.OpenFlags, error) {
	var flags vio.OpenFlags
	for _, name := range names {
		bit, ok := rightNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown right %q (valid: read, write, execute)", name)
		}
		flags |= bit
	}
	return flags, nil
}

// RightsNames returns the canonical name list for a set of rights.
func RightsNames(flags vio.OpenFlags) []string {
	var names []string
	if flags&vio.OpenRightReadable != 0 {
		names = append(names, "read")
	}
	if flags&vio.OpenRightWritable != 0 {
		names = append(names, "write")
	}
	if flags&vio.OpenRightExecutable != 0 {
		names = append(names, "execute")
	}
	return names
}

// openFlagsHookFunc decodes a list of right names, or a comma-separated
// string of them, wherever the schema asks for vio.OpenFlags.
func openFlagsHookFunc() mapstructure.DecodeHookFunc {
	flagsType := reflect.TypeOf(vio.OpenFlags(0))

	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != flagsType {
			return data, nil
		}

		switch from.Kind() {
		case reflect.String:
			raw := data.(string)
			if raw == "" {
				return vio.OpenFlags(0), nil
			}
			return ParseRights(strings.Split(raw, ","))

		case reflect.Slice:
			value := reflect.ValueOf(data)
			names := make([]string, 0, value.Len())
			for i := 0; i < value.Len(); i++ {
				name, ok := value.Index(i).Interface().(string)
				if !ok {
					return nil, fmt.Errorf("right name must be a string, got %T", value.Index(i).Interface())
				}
				names = append(names, name)
			}
			return ParseRights(names)

		default:
			return data, nil
		}
	}
}
