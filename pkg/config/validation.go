package config

import (
	"fmt"
	"net"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tag validation runs first (go-playground/validator); the tree
// section then gets the rules that tags cannot express: protocol-valid
// paths, type-consistent fields, no duplicate entries.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateRoot(&cfg.Root); err != nil {
		return err
	}

	return validateTree(cfg.Tree)
}

// validateRoot checks the root connection section.
func validateRoot(cfg *RootConfig) error {
	if cfg.Rights == 0 {
		return fmt.Errorf("root: rights must name at least one of read, write, execute")
	}
	if cfg.Rights&^vio.OpenRights != 0 {
		return fmt.Errorf("root: rights may only contain read, write, execute")
	}
	return nil
}

// validateTree checks every tree entry beyond what tags cover.
func validateTree(tree []NodeConfig) error {
	seen := make(map[string]bool)

	for i, node := range tree {
		p, err := path.Validate(node.Path)
		if err != nil {
			return fmt.Errorf("tree[%d]: invalid path %q", i, node.Path)
		}

		key := canonicalTreePath(node.Path)
		if seen[key] {
			return fmt.Errorf("tree[%d]: duplicate path %q", i, node.Path)
		}
		seen[key] = true

		if p.IsDir() && node.Type != "directory" {
			return fmt.Errorf("tree[%d]: path %q has a trailing slash but type is %q", i, node.Path, node.Type)
		}

		switch node.Type {
		case "directory":
			if node.Content != "" {
				return fmt.Errorf("tree[%d]: content applies to files, not directories", i)
			}
			if node.ReadOnly {
				return fmt.Errorf("tree[%d]: read_only applies to files, not directories", i)
			}
			if node.Address != "" {
				return fmt.Errorf("tree[%d]: address applies to remotes, not directories", i)
			}

		case "file":
			if node.Address != "" {
				return fmt.Errorf("tree[%d]: address applies to remotes, not files", i)
			}

		case "remote":
			if node.Address == "" {
				return fmt.Errorf("tree[%d]: remote entries need an address", i)
			}
			if _, _, err := net.SplitHostPort(node.Address); err != nil {
				return fmt.Errorf("tree[%d]: invalid address %q: %v", i, node.Address, err)
			}
			if node.Content != "" {
				return fmt.Errorf("tree[%d]: content applies to files, not remotes", i)
			}
			if node.ReadOnly {
				return fmt.Errorf("tree[%d]: read_only applies to files, not remotes", i)
			}
		}
	}

	return nil
}

// canonicalTreePath strips the directory marker so "docs" and "docs/"
// collide as duplicates.
func canonicalTreePath(raw string) string {
	if len(raw) > 1 && raw[len(raw)-1] == '/' {
		return raw[:len(raw)-1]
	}
	return raw
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
