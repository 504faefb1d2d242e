package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/config"
	"github.com/ayusman/handsign/internal/dataset"
	"github.com/ayusman/handsign/internal/store"
)

// openStorage opens the configured dataset storage for offline commands.
// The returned closer releases the database, if one was opened.
func (c *cli) openStorage() (dataset.Storage, app.SessionLister, io.Closer, error) {
	if err := os.MkdirAll(c.opts.DataDir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	var st *store.Store
	closer := io.Closer(nopCloser{})
	if c.opts.Storage != config.StorageFile {
		s, err := store.New(c.opts.DBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("initialize store: %w", err)
		}
		st, closer = s, s
	}

	storage, sessions, err := app.OpenStorage(c.opts, st, c.logger)
	if err != nil {
		closer.Close()
		return nil, nil, nil, err
	}
	return storage, sessions, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
