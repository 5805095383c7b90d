package snapshot

import (
	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/host"
	"github.com/yndnr/savekeep-go/internal/persist/registry"
	"github.com/yndnr/savekeep-go/internal/persist/value"
)

// Capture reads every durable field of every live object into a snapshot.
//
// Objects are matched to registry entries by exact runtime type: an object
// whose type derives from a registered type but has no entry of its own is
// not captured. Manual entries are skipped. Any failing field read aborts
// the capture with ErrCapture.
func Capture(reg *registry.Registry, src host.ObjectSource) (*Snapshot, error) {
	byType := make(map[string][]host.Object)
	for _, obj := range src.Objects() {
		byType[obj.TypeName()] = append(byType[obj.TypeName()], obj)
	}

	snap := &Snapshot{}
	for _, e := range reg.Entries() {
		if e.Manual {
			continue
		}
		for _, obj := range byType[e.Type] {
			rec := Record{Type: e.Type, Fields: make(map[string]value.Value, len(e.Fields))}
			for _, f := range e.Fields {
				v, err := obj.Get(f.ID.Name)
				if err != nil {
					return nil, domain.ErrCapture.WithDetails(f.ID.String()).WithCause(err)
				}
				rec.Fields[f.ID.Name] = v
			}
			snap.Records = append(snap.Records, rec)
		}
	}
	return snap, nil
}
