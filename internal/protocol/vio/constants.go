package vio

// VIO Operation Codes
// These identify the different operations a connection can serve.
const (
	// OpClone - Open a sibling connection to the same node
	OpClone = 1

	// OpClose - Close the connection
	OpClose = 2

	// OpDescribe - Query the node type
	OpDescribe = 3

	// OpSync - Flush buffered state to the backing entry
	OpSync = 4

	// OpGetAttr - Get node attributes
	OpGetAttr = 5

	// OpSetAttr - Set node attributes
	OpSetAttr = 6

	// OpGetFlags - Get connection flags
	OpGetFlags = 7

	// OpSetFlags - Set connection flags
	OpSetFlags = 8

	// OpOpen - Open an entry under a directory
	OpOpen = 9

	// OpReadDirents - Read a page of directory entries
	OpReadDirents = 10

	// OpRewind - Reset the directory enumeration cursor
	OpRewind = 11

	// OpLink - Hard-link an entry into another directory
	OpLink = 12

	// OpWatch - Register a watcher channel for directory events
	OpWatch = 13

	// OpUnlink - Remove a directory entry
	OpUnlink = 14

	// OpGetToken - Mint a token identifying the directory
	OpGetToken = 15

	// OpRename - Move an entry between directories
	OpRename = 16

	// OpRead - Read from the current seek offset
	OpRead = 17

	// OpReadAt - Read from an explicit offset
	OpReadAt = 18

	// OpWrite - Write at the current seek offset (or append)
	OpWrite = 19

	// OpWriteAt - Write at an explicit offset
	OpWriteAt = 20

	// OpSeek - Move the seek offset
	OpSeek = 21

	// OpTruncate - Set the file length
	OpTruncate = 22

	// OpGetBuffer - Get a byte buffer backed by the file content
	OpGetBuffer = 23

	// OpAdvisoryLock - POSIX-style advisory locking (unsupported)
	OpAdvisoryLock = 24

	// OpQueryFilesystem - Query filesystem-wide information
	OpQueryFilesystem = 25

	// OpOnOpen - Event reporting the outcome of Open/Clone (XID 0)
	OpOnOpen = 100
)

// Mode type bits. The mode word passed to Open carries the expected node type
// in these bits; the rest is protection information.
const (
	// ModeTypeMask selects the type bits of a mode word.
	ModeTypeMask = 0x000FF000

	// ModeTypeDirectory - The node must be a directory
	ModeTypeDirectory = 0x004000

	// ModeTypeFile - The node must be a regular file
	ModeTypeFile = 0x008000

	// ModeTypeService - The node must be a service
	ModeTypeService = 0x010000

	// ModeProtectionMask selects the permission bits of a mode word.
	ModeProtectionMask = 0x00000FFF
)

// Dirent type codes, one per node kind, stored in the type byte of a dirent
// record.
const (
	// DirentTypeUnknown - Type could not be determined
	DirentTypeUnknown = 0

	// DirentTypeDirectory - Directory entry
	DirentTypeDirectory = 4

	// DirentTypeBlockDevice - Block device entry
	DirentTypeBlockDevice = 6

	// DirentTypeFile - Regular file entry
	DirentTypeFile = 8

	// DirentTypeSocket - Socket entry
	DirentTypeSocket = 12

	// DirentTypeService - Service entry
	DirentTypeService = 16
)

// Node kinds reported by Describe and OnOpen.
const (
	// NodeKindService - A service node, or any node opened as a node reference
	NodeKindService = 1

	// NodeKindFile - A file node
	NodeKindFile = 2

	// NodeKindDirectory - A directory node
	NodeKindDirectory = 3
)

// Protocol limits.
const (
	// MaxTransfer is the largest byte count a single Read/ReadAt/Write/WriteAt
	// may move. Larger requests fail with StatusOutOfRange.
	MaxTransfer = 8192

	// MaxFilename is the longest name a single path component may have. The
	// length must fit the one-byte name_len field of a dirent record.
	MaxFilename = 255

	// MaxMessage bounds the size of any variable-length field on the wire,
	// protecting the decoder against hostile length prefixes.
	MaxMessage = 65536
)

// InoUnknown is the inode value reported when a node has no usable identifier.
const InoUnknown = ^uint64(0)

// PosixDirectoryProtection is the protection reported by directory GetAttr
// (rwxr-xr-x).
const PosixDirectoryProtection = 0o755

// PosixFileProtection is the protection reported by writable file GetAttr
// (rw-r--r--). Read-only files drop the write bit.
const PosixFileProtection = 0o644

// PosixServiceProtection is the protection reported by stub node GetAttr
// (r--r--r--). A node reference connection can only query, never mutate.
const PosixServiceProtection = 0o444

// Buffer flags accepted by GetBuffer.
const (
	// BufferFlagRead requests read access to the buffer.
	BufferFlagRead = 0x00000001

	// BufferFlagWrite requests write access to the buffer.
	BufferFlagWrite = 0x00000002

	// BufferFlagExecute requests execute access to the buffer.
	BufferFlagExecute = 0x00000004

	// BufferFlagPrivate requests a private copy of the content.
	BufferFlagPrivate = 0x00010000

	// BufferFlagExact requests the exact backing buffer, never a copy.
	// Mutually exclusive with BufferFlagPrivate.
	BufferFlagExact = 0x00020000
)

// Watch mask bits select which event classes a watcher receives.
const (
	// WatchMaskDeleted - The watched directory itself was deleted
	WatchMaskDeleted = 0x00000001

	// WatchMaskAdded - An entry was added
	WatchMaskAdded = 0x00000002

	// WatchMaskRemoved - An entry was removed
	WatchMaskRemoved = 0x00000004

	// WatchMaskExisting - Deliver the entries present at registration time
	WatchMaskExisting = 0x00000008

	// WatchMaskIdle - Deliver an idle marker once existing entries are sent
	WatchMaskIdle = 0x00000010
)

// Watch event codes carried in watch event buffers.
const (
	WatchEventDeleted  = 0
	WatchEventAdded    = 1
	WatchEventRemoved  = 2
	WatchEventExisting = 3
	WatchEventIdle     = 4
)

// Seek origins.
const (
	// SeekStart - Offset is relative to the start of the file
	SeekStart = 0

	// SeekCurrent - Offset is relative to the current seek position
	SeekCurrent = 1

	// SeekEnd - Offset is relative to the end of the file
	SeekEnd = 2
)
