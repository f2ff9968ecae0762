package remote

// Operation names a batch kind.
type Operation string

const (
	OperationUpload   Operation = "upload"
	OperationDownload Operation = "download"
	OperationDelete   Operation = "delete"
)

// OperationMonitor receives progress notifications of a batch. All calls are
// made outside the client's session lock.
type OperationMonitor interface {
	OperationStart(op Operation, total int)
	OperationProcess(op Operation, file *TransferFile)
	OperationFinish(op Operation, info *TransferInfo)
	// AddUnits grows the total when a directory reveals more work.
	AddUnits(op Operation, units int)
}

type NoopMonitor struct{}

func (NoopMonitor) OperationStart(Operation, int)             {}
func (NoopMonitor) OperationProcess(Operation, *TransferFile) {}
func (NoopMonitor) OperationFinish(Operation, *TransferInfo)  {}
func (NoopMonitor) AddUnits(Operation, int)                   {}

// Resolution is the answer to a download conflict.
type Resolution int

const (
	ResolutionSkip Resolution = iota
	ResolutionOverwrite
)

// ConflictResolver decides whether a download may discard unsaved local
// changes of the given file.
type ConflictResolver interface {
	Resolve(localPath string) Resolution
}

type ConflictResolverFunc func(localPath string) Resolution

func (f ConflictResolverFunc) Resolve(localPath string) Resolution {
	return f(localPath)
}
