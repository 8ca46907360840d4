package invoice

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mit-dci/hodl/eventbus"
)

// Registry owns every invoice record.  Everyone else gets copies, and every
// state change goes through CompareAndSwap.
type Registry struct {
	InvoiceDB *bolt.DB

	ebus *eventbus.EventBus

	// Now is swappable for tests.
	Now func() time.Time
}

// NewRegistry opens (or creates) the invoice database at dbPath.  ebus may be
// nil if nobody cares about state changes.
func NewRegistry(dbPath string, ebus *eventbus.EventBus) (*Registry, error) {

	r := &Registry{
		ebus: ebus,
		Now:  time.Now,
	}
	err := r.InitDB(dbPath)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.InvoiceDB.Close()
}
