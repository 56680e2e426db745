package dto

// BufferedSnapshot holds an encoded result frame before it is flushed to disk.
type BufferedSnapshot struct {
	Timestamp string
	SessionID string
	Label     string
	Path      string
	Data      []byte
}
