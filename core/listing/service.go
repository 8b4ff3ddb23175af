// Package listing serves the public directory of teachers and institutes.
package listing

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/merkez"
)

const PublicPath = "/public/merkez"

var ErrNotFound = errors.New("merkez not found")

// Page is one answer of the listing endpoint.
type Page struct {
	Merkez   []merkez.Merkez   `json:"merkez"`
	Rejected []merkez.Rejected `json:"-"`
}

type Service struct {
	fetcher core.Fetcher
	decoder *merkez.Decoder
	logger  core.Logger
}

func NewService(fetcher core.Fetcher, decoder *merkez.Decoder, logger core.Logger) *Service {
	return &Service{fetcher: fetcher, decoder: decoder, logger: logger}
}

// List fetches the records matching `pairs`. Records that fail validation are logged and left out.
func (svc *Service) List(ctx context.Context, sess core.Session, pairs []core.QueryPair) (Page, error) {
	var raw json.RawMessage
	if err := svc.fetcher.Fetch(ctx, sess, PublicPath, pairs, &raw); err != nil {
		return Page{}, errors.Wrap(err, "listing merkez")
	}
	if len(raw) == 0 {
		return Page{Merkez: []merkez.Merkez{}}, nil
	}

	list, rejected, err := svc.decoder.DecodeList(raw)
	if err != nil {
		return Page{}, err
	}
	for _, rej := range rejected {
		svc.logger.Warn("merkez record rejected", rej, sess)
	}
	return Page{Merkez: list, Rejected: rejected}, nil
}

// Get fetches a single record.
func (svc *Service) Get(ctx context.Context, sess core.Session, id int) (merkez.Merkez, error) {
	if id <= 0 {
		return merkez.Merkez{}, ErrNotFound
	}

	var raw json.RawMessage
	if err := svc.fetcher.Fetch(ctx, sess, PublicPath+"/"+strconv.Itoa(id), nil, &raw); err != nil {
		return merkez.Merkez{}, errors.Wrapf(err, "getting merkez %d", id)
	}
	m, err := svc.decoder.Decode(raw)
	if err != nil {
		svc.logger.Warn("merkez record rejected", merkez.Rejected{ID: id, Err: err}, sess)
		return merkez.Merkez{}, err
	}
	return m, nil
}
