// Package inmemdb provides in-memory repositories, used in tests and as a
// reference implementation of the repository contracts.
package inmemdb

import (
	"sync"

	"github.com/edlabhq/exameval/core/exam"
	"github.com/edlabhq/exameval/core/upload"
	"github.com/edlabhq/exameval/core/user"
)

type (
	DB struct {
		user   *userTable
		exam   *examTables
		upload *uploadTables
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	examTables struct {
		tests       map[string]*exam.Test
		results     []exam.TestResult                // append-only
		completions map[string]map[string]bool      // studentID -> testID -> done
		sections    map[string]*exam.Section
		sectionIdx  []string // insertion order
		mutex       sync.RWMutex
	}

	uploadTables struct {
		uploads []upload.Upload // most recent first
		blobs   map[string]*upload.FileBlob
		mutex   sync.RWMutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		exam: &examTables{
			tests:       make(map[string]*exam.Test),
			completions: make(map[string]map[string]bool),
			sections:    make(map[string]*exam.Section),
		},
		upload: &uploadTables{blobs: make(map[string]*upload.FileBlob)},
	}
	return db, nil
}
