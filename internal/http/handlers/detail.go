package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/xtreamer/internal/app"
)

// DetailHandler handles movie and series details and the program guide.
type DetailHandler struct {
	app *app.App
}

// NewDetailHandler creates a new detail handler.
func NewDetailHandler(a *app.App) *DetailHandler {
	return &DetailHandler{app: a}
}

// Register registers the detail routes with the API.
func (h *DetailHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getProgramGuide",
		Method:      "GET",
		Path:        "/api/v1/live/streams/{streamId}/epg",
		Summary:     "Get the program guide of a channel",
		Tags:        []string{"Live"},
	}, h.GetProgramGuide)

	huma.Register(api, huma.Operation{
		OperationID: "getMovieDetail",
		Method:      "GET",
		Path:        "/api/v1/movie/{id}",
		Summary:     "Get movie detail",
		Tags:        []string{"Movie"},
	}, h.GetMovieDetail)

	huma.Register(api, huma.Operation{
		OperationID: "getSeriesDetail",
		Method:      "GET",
		Path:        "/api/v1/series/{id}",
		Summary:     "Get series detail",
		Description: "Loads the series and selects its lowest season, or the season given.",
		Tags:        []string{"Series"},
	}, h.GetSeriesDetail)
}

// GetProgramGuide returns the short EPG of a channel.
func (h *DetailHandler) GetProgramGuide(ctx context.Context, input *ProgramGuideInput) (*ProgramGuideOutput, error) {
	c, err := content(h.app)
	if err != nil {
		return nil, err
	}
	programs, err := c.Channels.ProgramGuide(ctx, input.StreamID)
	if err != nil {
		return nil, panelError(err)
	}

	out := &ProgramGuideOutput{}
	out.Body.StreamID = strings.TrimSpace(input.StreamID)
	out.Body.Programs = programs
	return out, nil
}

// GetMovieDetail loads and returns a movie detail.
func (h *DetailHandler) GetMovieDetail(ctx context.Context, input *IDInput) (*MovieDetailOutput, error) {
	c, err := content(h.app)
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, c.Movies.LoadDetail(input.ID)); err != nil {
		return nil, err
	}

	st := c.Movies.Detail()
	if st.ErrorMessage != "" {
		return nil, huma.Error502BadGateway(st.ErrorMessage)
	}
	return &MovieDetailOutput{Body: st}, nil
}

// GetSeriesDetail loads a series and optionally selects a season.
func (h *DetailHandler) GetSeriesDetail(ctx context.Context, input *SeriesDetailInput) (*SeriesDetailOutput, error) {
	c, err := content(h.app)
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, c.Series.LoadDetail(input.ID)); err != nil {
		return nil, err
	}
	if st := c.Series.Detail(); st.ErrorMessage != "" {
		return nil, huma.Error502BadGateway(st.ErrorMessage)
	}

	if input.Season > 0 {
		if err := c.Series.SelectSeason(input.Season); err != nil {
			return nil, huma.Error404NotFound(err.Error())
		}
	}
	return &SeriesDetailOutput{Body: c.Series.Detail()}, nil
}
