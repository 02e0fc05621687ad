package data

import "fmt"

type NotificationKind int

const (
	Created NotificationKind = iota + 1
	Deleted
	Moved
)

func (k NotificationKind) String() string {
	switch k {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	default:
		return "unknown"
	}
}

// Notification is a single filesystem mutation reported by a watch service.
// DestPath is only set for Moved notifications.
type Notification struct {
	ID          string           `json:"id,omitempty"`
	Kind        NotificationKind `json:"kind"`
	Path        string           `json:"path"`
	DestPath    string           `json:"dest_path,omitempty"`
	IsDirectory bool             `json:"is_directory"`
}

// Target names what the notification refers to: "file" or "directory".
func (n Notification) Target() string {
	if n.IsDirectory {
		return "directory"
	}
	return "file"
}

// Validate checks that the notification carries the paths its kind needs.
func (n Notification) Validate() error {
	switch n.Kind {
	case Created, Deleted:
		if n.Path == "" {
			return fmt.Errorf("%w: %s without path", ErrInvalidNotification, n.Kind)
		}
	case Moved:
		if n.Path == "" || n.DestPath == "" {
			return fmt.Errorf("%w: moved requires source and destination", ErrInvalidNotification)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidNotification, int(n.Kind))
	}

	return nil
}

func (n Notification) String() string {
	if n.Kind == Moved {
		return fmt.Sprintf("%s %s %s -> %s", n.Kind, n.Target(), n.Path, n.DestPath)
	}
	return fmt.Sprintf("%s %s %s", n.Kind, n.Target(), n.Path)
}
