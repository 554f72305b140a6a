package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Sentinel errors for storage failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrNotFound indicates the item or object no longer exists (ENOENT, NoSuchKey, 404).
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the relocation target is already occupied.
	ErrAlreadyExists = errors.New("already exists")

	// ErrPartialMove indicates a copy succeeded but the source delete failed.
	// The artifact exists at both locations.
	ErrPartialMove = errors.New("copied but source not deleted")

	// ErrPermissionDenied indicates a filesystem permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAccessDenied indicates authorization failure (valid creds but no permission, 403).
	ErrAccessDenied = errors.New("access denied")

	// ErrAuth indicates authentication failure (no credentials, expired token).
	ErrAuth = errors.New("authentication failed")

	// ErrDiskFull indicates storage is out of space (ENOSPC).
	ErrDiskFull = errors.New("no space left on device")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network error")

	// errUnclassified is the kind for errors matching no known pattern.
	errUnclassified = errors.New("storage error")
)

// Storage operations recorded in StorageError.Op.
const (
	OpList      = "list"
	OpRead      = "read"
	OpRelocate  = "relocate"
	OpAppendLog = "append_log"
	OpReadLog   = "read_log"
	OpInit      = "init"

	OpPutSummary = "put_summary"
	OpGetSummary = "get_summary"
)

// StorageError wraps an underlying error with storage classification.
// It preserves the original error in the chain for inspection via errors.As.
type StorageError struct {
	// Kind is the sentinel error for classification (e.g., ErrNotFound).
	Kind error
	// Op is the operation that failed (list, read, relocate, append_log).
	Op string
	// Path is the key or path involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewStorageError creates a classified storage error with an explicit kind.
func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{
		Kind: kind,
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// WrapError classifies err and wraps it for op on path.
// Returns nil if err is nil.
func WrapError(err error, op, path string) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return NewStorageError(classifyError(err), op, path, err)
}

// IsOp reports whether err is a StorageError raised by op.
func IsOp(err error, op string) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Op == op
}

// classifyError determines the sentinel for err.
// Typed errors are checked first, then S3 error codes, then message patterns.
func classifyError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrExist):
		return ErrAlreadyExists
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	}

	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return ErrNotFound
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		case "SlowDown", "Throttling", "TooManyRequests":
			return ErrThrottled
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return ErrAuth
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "no such file", "does not exist", "not found", "enoent", "nosuchkey"):
		return ErrNotFound
	case containsAny(msg, "accessdenied", "forbidden", "403"):
		return ErrAccessDenied
	case containsAny(msg, "permission denied", "eacces"):
		return ErrPermissionDenied
	case containsAny(msg, "no space left", "disk full", "enospc", "quota exceeded"):
		return ErrDiskFull
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrTimeout
	case containsAny(msg, "slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"):
		return ErrThrottled
	case containsAny(msg, "nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"):
		return ErrAuth
	case containsAny(msg, "connection refused", "no route to host", "network unreachable",
		"no such host", "dial tcp"):
		return ErrNetwork
	default:
		return errUnclassified
	}
}

// containsAny reports whether s contains any of the lowercase substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
