package engine

// DataSourceError reports a failed store read. The engine never retries;
// callers decide whether to.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DataSourceError) Unwrap() error { return e.Err }
