package store

import (
	"time"

	"github.com/fasttq/galactus/internal/model"
)

// pgxTimestamp bridges a database/sql-scannable timestamptz column into
// model.Time without coupling model to the driver's scan protocol.
type pgxTimestamp struct {
	t time.Time
}

func (p *pgxTimestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		p.t = v
	case nil:
		p.t = time.Time{}
	}
	return nil
}

func (p pgxTimestamp) toModel() model.Time {
	return model.Time(p.t.UTC())
}
