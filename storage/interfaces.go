package storage

import "tablenorm/models"

// TableWriter is the interface any storage backend for clean tables must satisfy.
type TableWriter interface {
	Write(table *models.CleanTable) error
	Close() error
}

// TableLoader produces raw tables; implemented by Loader and the HTML table fetcher.
type TableLoader interface {
	Load(name, source string, opts LoadOptions) (*models.RawTable, error)
}
