package db

// Op constants name the SQL operation for error context.
const (
	OpCreateSchema = "CREATE TABLE"
	OpCreateIndex  = "CREATE INDEX"
	OpDropIndex    = "DROP INDEX"
	OpUpsert       = "INSERT"
	OpDelete       = "DELETE"
	OpQuery        = "SELECT"
	OpPing         = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
