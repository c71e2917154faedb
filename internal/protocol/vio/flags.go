package vio

// OpenFlags is the flag word carried by Open and Clone requests and stored by
// every live connection. The low bits are rights; the rest modify how the
// node is opened.
type OpenFlags uint32

const (
	// OpenRightReadable - Connection may read node content
	OpenRightReadable OpenFlags = 0x00000001

	// OpenRightWritable - Connection may mutate node content and entries
	OpenRightWritable OpenFlags = 0x00000002

	// OpenRightExecutable - Connection may map content for execution
	OpenRightExecutable OpenFlags = 0x00000008

	// OpenFlagCreate - Create the entry if it does not exist
	OpenFlagCreate OpenFlags = 0x00010000

	// OpenFlagCreateIfAbsent - With OpenFlagCreate, fail if the entry exists
	OpenFlagCreateIfAbsent OpenFlags = 0x00020000

	// OpenFlagTruncate - Truncate the file before returning the connection
	OpenFlagTruncate OpenFlags = 0x00040000

	// OpenFlagDirectory - The target must be a directory
	OpenFlagDirectory OpenFlags = 0x00080000

	// OpenFlagAppend - Writes always go to the end of the file
	OpenFlagAppend OpenFlags = 0x00100000

	// OpenFlagNoRemote - Open the mount point itself, not the remote root
	OpenFlagNoRemote OpenFlags = 0x00200000

	// OpenFlagNodeReference - Open a connection that can only query the node
	OpenFlagNodeReference OpenFlags = 0x00400000

	// OpenFlagDescribe - Request an OnOpen event describing the node
	OpenFlagDescribe OpenFlags = 0x00800000

	// OpenFlagPosixDeprecated - Legacy: expand to both POSIX flags below
	OpenFlagPosixDeprecated OpenFlags = 0x01000000

	// OpenFlagNotDirectory - The target must not be a directory
	OpenFlagNotDirectory OpenFlags = 0x02000000

	// CloneFlagSameRights - Clone with exactly the parent connection's rights
	CloneFlagSameRights OpenFlags = 0x04000000

	// OpenFlagPosixWritable - Upgrade to writable if the parent is writable
	OpenFlagPosixWritable OpenFlags = 0x08000000

	// OpenFlagPosixExecutable - Upgrade to executable if the parent is executable
	OpenFlagPosixExecutable OpenFlags = 0x10000000
)

// OpenRights selects the rights bits of a flag word.
const OpenRights = OpenRightReadable | OpenRightWritable | OpenRightExecutable

// OpenFlagsAllowedWithNodeReference are the only flags that survive a node
// reference open. The directory/not-directory bits survive just long enough
// to be checked by the validators below.
const OpenFlagsAllowedWithNodeReference = OpenFlagNodeReference | OpenFlagDescribe |
	OpenFlagDirectory | OpenFlagNotDirectory

// FileGetFlagsVisible are the flag bits reported by GetFlags on file
// connections. Everything else is connect-time-only state.
const FileGetFlagsVisible = OpenRights | OpenFlagAppend | OpenFlagNodeReference

// Rights returns just the rights bits of the flag word.
func (f OpenFlags) Rights() OpenFlags {
	return f & OpenRights
}

// StricterOrSame reports whether the rights in f are a subset of the rights
// in parent.
func (f OpenFlags) StricterOrSame(parent OpenFlags) bool {
	return f.Rights()&^parent.Rights() == 0
}

// ValidateConnectionFlags validates and normalizes the flags of a new
// directory connection. The returned flags carry explicit rights only: the
// POSIX compatibility bits have been expanded against nothing (connection
// validation happens after any parent-aware expansion) and removed, and the
// informational directory bit is gone. The function is idempotent on its own
// output.
func ValidateConnectionFlags(flags OpenFlags) (OpenFlags, error) {
	if flags&OpenFlagNodeReference != 0 {
		flags &= OpenFlagsAllowedWithNodeReference
	}

	// The target is known to be a directory, the flag is now informational.
	if flags&OpenFlagDirectory != 0 {
		flags &^= OpenFlagDirectory
	}

	if flags&OpenFlagNotDirectory != 0 {
		return 0, StatusNotFile
	}

	// Expand the legacy POSIX bit, then fold any POSIX bits into real rights.
	if flags&OpenFlagPosixDeprecated != 0 {
		flags |= OpenFlagPosixWritable | OpenFlagPosixExecutable
	}
	if flags&(OpenFlagPosixDeprecated|OpenFlagPosixExecutable) != 0 {
		flags |= OpenRightExecutable
	}
	if flags&(OpenFlagPosixDeprecated|OpenFlagPosixWritable) != 0 {
		flags |= OpenRightWritable
	}
	flags &^= OpenFlagPosixDeprecated | OpenFlagPosixWritable | OpenFlagPosixExecutable

	prohibited := OpenFlagAppend | OpenFlagTruncate
	if flags&prohibited != 0 {
		return 0, StatusInvalidArgs
	}

	allowed := OpenFlagNodeReference | OpenFlagDescribe | OpenFlagCreate |
		OpenFlagCreateIfAbsent | OpenFlagDirectory | OpenRights
	if flags&^allowed != 0 {
		return 0, StatusNotSupported
	}

	return flags, nil
}

// CheckChildConnectionFlags validates flags and mode for an Open forwarded by
// a connection with parentFlags, returning the flags and mode the child
// connection should be created with. Rights may only narrow; POSIX bits are
// dropped silently when the parent cannot satisfy them.
func CheckChildConnectionFlags(parentFlags, flags OpenFlags, mode uint32) (OpenFlags, uint32, error) {
	if mode&ModeTypeMask == 0 && flags&OpenFlagDirectory != 0 {
		mode |= ModeTypeDirectory
	} else {
		if mode&ModeTypeMask != ModeTypeDirectory && flags&OpenFlagDirectory != 0 {
			return 0, 0, StatusInvalidArgs
		}
		if mode&ModeTypeMask == ModeTypeDirectory && flags&OpenFlagNotDirectory != 0 {
			return 0, 0, StatusInvalidArgs
		}
	}

	if flags&(OpenFlagDirectory|OpenFlagNotDirectory) == OpenFlagDirectory|OpenFlagNotDirectory {
		return 0, 0, StatusInvalidArgs
	}

	if flags&OpenFlagCreateIfAbsent != 0 && flags&OpenFlagCreate == 0 {
		return 0, 0, StatusInvalidArgs
	}

	// Only Clone may ask for the parent's rights implicitly.
	if flags&CloneFlagSameRights != 0 {
		return 0, 0, StatusInvalidArgs
	}

	if flags&OpenFlagPosixDeprecated != 0 {
		flags |= OpenFlagPosixWritable | OpenFlagPosixExecutable
		flags &^= OpenFlagPosixDeprecated
	}

	// POSIX bits are best-effort: drop the ones the parent cannot grant.
	if parentFlags&OpenRightExecutable == 0 {
		flags &^= OpenFlagPosixExecutable
	}
	if parentFlags&OpenRightWritable == 0 {
		flags &^= OpenFlagPosixWritable
	}

	if flags&OpenFlagCreate != 0 && parentFlags&OpenRightWritable == 0 {
		return 0, 0, StatusAccessDenied
	}

	if !flags.StricterOrSame(parentFlags) {
		return 0, 0, StatusAccessDenied
	}

	return flags, mode, nil
}

// InheritRightsForClone resolves the rights of a Clone request against the
// parent connection. CloneFlagSameRights is mutually exclusive with explicit
// rights; without it, explicit rights may only narrow.
func InheritRightsForClone(parentFlags, flags OpenFlags) (OpenFlags, error) {
	if flags&CloneFlagSameRights != 0 && flags&OpenRights != 0 {
		return 0, StatusInvalidArgs
	}

	// Append survives the clone, the closest analogue of dup().
	flags |= parentFlags & OpenFlagAppend

	if flags&CloneFlagSameRights != 0 {
		flags &^= CloneFlagSameRights
		flags |= parentFlags & OpenRights
	}

	if !flags.StricterOrSame(parentFlags) {
		return 0, StatusAccessDenied
	}

	return flags, nil
}

// ValidateNodeConnectionFlags validates the flags of a stub node connection,
// the kind served for node reference opens of services and remotes. The stub
// cannot check the directory type assertion bits against anything; the entry
// that routed the open here already knows its own shape, so the bits are
// only checked against each other and dropped.
func ValidateNodeConnectionFlags(flags OpenFlags) (OpenFlags, error) {
	if flags&OpenFlagDirectory != 0 && flags&OpenFlagNotDirectory != 0 {
		return 0, StatusInvalidArgs
	}

	flags &^= OpenFlagDirectory | OpenFlagNotDirectory
	return flags & OpenFlagsAllowedWithNodeReference, nil
}

// ValidateFileConnectionFlags validates and normalizes the flags of a new
// file connection against the capabilities of the backing file. A node
// reference connection keeps no rights regardless of the capabilities.
func ValidateFileConnectionFlags(flags OpenFlags, readable, writable, executable, appendAllowed bool) (OpenFlags, error) {
	if flags&OpenFlagNodeReference != 0 {
		flags &= OpenFlagsAllowedWithNodeReference
		readable = false
		writable = false
		executable = false
	}

	if flags&OpenFlagDirectory != 0 {
		return 0, StatusNotDir
	}

	// The target is known not to be a directory.
	flags &^= OpenFlagNotDirectory

	// POSIX expansion is a directory affair; on files the bits are noise.
	flags &^= OpenFlagPosixDeprecated | OpenFlagPosixWritable | OpenFlagPosixExecutable

	if flags&OpenRightReadable != 0 && !readable {
		return 0, StatusAccessDenied
	}
	if flags&OpenRightWritable != 0 && !writable {
		return 0, StatusAccessDenied
	}
	if flags&OpenRightExecutable != 0 && !executable {
		return 0, StatusAccessDenied
	}

	if flags&OpenFlagTruncate != 0 && flags&OpenRightWritable == 0 {
		return 0, StatusInvalidArgs
	}

	if flags&OpenFlagAppend != 0 && !appendAllowed {
		return 0, StatusNotSupported
	}

	allowed := OpenFlagNodeReference | OpenFlagDescribe | OpenFlagCreate |
		OpenFlagCreateIfAbsent | OpenFlagTruncate | OpenFlagAppend | OpenRights
	if flags&^allowed != 0 {
		return 0, StatusNotSupported
	}

	return flags, nil
}

// ValidateBufferFlags checks a GetBuffer request against the connection
// flags. Buffer sharing modes are checked here; whether the backing file can
// satisfy them is its own business.
func ValidateBufferFlags(bufferFlags uint32, connFlags OpenFlags) error {
	if connFlags&OpenRightReadable == 0 {
		return StatusAccessDenied
	}
	if bufferFlags&BufferFlagWrite != 0 && connFlags&OpenRightWritable == 0 {
		return StatusAccessDenied
	}
	if bufferFlags&BufferFlagExecute != 0 && connFlags&OpenRightExecutable == 0 {
		return StatusAccessDenied
	}
	if bufferFlags&BufferFlagPrivate != 0 && bufferFlags&BufferFlagExact != 0 {
		return StatusInvalidArgs
	}
	return nil
}
