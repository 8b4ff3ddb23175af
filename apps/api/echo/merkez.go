package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/facet"
	"github.com/maraakiz/portal/core/listing"
	"github.com/maraakiz/portal/core/merkez"
)

type merkezApi struct {
	svc     *listing.Service
	catalog *facet.Catalog
	logger  core.Logger
}

func registerMerkezAPI(g *echo.Group, svc *listing.Service, catalog *facet.Catalog, logger core.Logger) {
	api := merkezApi{svc: svc, catalog: catalog, logger: logger}

	g.GET("/facets", api.facets)

	mg := g.Group("/merkez")
	mg.GET("", api.query)
	mg.GET("/:id", api.retrieve)
}

type ListResponse struct {
	Filters  facet.State     `json:"filtres"`
	Count    int             `json:"count"`
	Merkez   []merkez.Merkez `json:"merkez"`
	Rejected int             `json:"rejetes,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Handlers

func (api *merkezApi) facets(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.catalog)
}

// query lists the merkez matching the repeated facet parameters, e.g. `?matiere=coran&matiere=arabe&format=en-ligne`.
func (api *merkezApi) query(ctx echo.Context) error {
	var pg Pagination
	if err := pg.Bind(ctx); err != nil {
		return err
	}
	filter := facet.FromQuery(ctx.QueryParams(), skipParam, limitParam)

	page, err := api.svc.List(ctx.Request().Context(), getContextSession(ctx), append(filter.QueryPairs(), pg.QueryPairs()...))
	if err != nil {
		return errors.Wrap(err, "listing merkez")
	}

	resp := ListResponse{
		Filters:  filter.State(),
		Count:    len(page.Merkez),
		Merkez:   page.Merkez,
		Rejected: len(page.Rejected),
		Warnings: api.unknownOptions(filter),
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *merkezApi) retrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	m, err := api.svc.Get(ctx.Request().Context(), getContextSession(ctx), id)
	if err != nil {
		if _, ok := err.(*core.ValidationError); ok {
			api.logger.Warn("merkez record rejected", err, map[string]interface{}{"id": id})
			return errInvalidUpstreamData
		}
		return errors.Wrap(err, "retrieving merkez")
	}
	return ctx.JSON(http.StatusOK, m)
}

// unknownOptions describes the selected values the catalog does not offer.
func (api *merkezApi) unknownOptions(filter *facet.Filter) []string {
	var warnings []string
	for _, p := range filter.QueryPairs() {
		if api.catalog.Knows(p.Key, p.Value) {
			continue
		}
		if opt, ok := api.catalog.Suggest(p.Key, p.Value); ok {
			warnings = append(warnings, fmt.Sprintf("%s=%s: unknown option, did you mean %q?", p.Key, p.Value, opt.Value))
		} else {
			warnings = append(warnings, fmt.Sprintf("%s=%s: unknown option", p.Key, p.Value))
		}
	}
	return warnings
}
