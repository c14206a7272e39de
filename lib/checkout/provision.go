package checkout

import (
	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/store"
)

// EnsureLogTable returns the log table of a project and creates it on first use.
//
// The lookup by name runs immediately before the create. Two clients creating
// the table at the same time can still produce two tables with the reserved
// name; the first one in creation order is then used by everybody.
func EnsureLogTable(s store.IStore, container db.Entity) (db.Entity, error) {
	log.Debugf("Loading tables of %s", container)
	tables, err := s.ListChildren(container.ID, db.KindTable)
	if err != nil {
		return db.Entity{}, classify("list tables", err)
	}
	for _, t := range tables {
		if t.Name == LogTableName {
			return t, nil
		}
	}

	log.Infof("Creating table %s in %s", LogTableName, container)
	table, err := s.CreateTable(container.ID, LogSchema())
	if err != nil {
		return db.Entity{}, classify("create log table", err)
	}
	return table, nil
}
