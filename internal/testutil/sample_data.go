// Package testutil provides fictional panel catalogs and a fake Xtream
// panel for tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// Standard fictional broadcasters for test data.
// NEVER use real brand names like BBC, ESPN, HBO, Sky, etc.
var (
	Broadcasters = []string{
		"StreamCast",
		"ViewMedia",
		"AeroVision",
		"GlobalStream",
		"NationalNet",
		"SportsCentral",
		"CinemaMax",
		"MusicMax",
		"NewsFirst",
		"PrimeTV",
	}

	QualityVariants = []string{
		"HD",
		"SD",
		"4K",
	}

	// Genres name the categories of a generated catalog in panel order.
	Genres = []string{"News", "Sports", "Movies", "Entertainment", "Kids"}

	// Titles are fictional VOD titles.
	// NEVER use real show names, movie titles, or trademarked content.
	Titles = []string{
		"City Hospital",
		"Legal Eagles",
		"Crime Division",
		"Ocean Explorer",
		"Historical Tales",
		"Quiz Masters",
		"Nature World",
		"Sci-Fi Feature",
	}

	// Extensions are the container extensions a panel reports.
	Extensions = []string{"mp4", "mkv", "avi"}
)

// Catalog is the content a fake panel serves.
type Catalog struct {
	Categories map[xtream.ContentType][]xtream.Category
	Channels   map[string][]xtream.Channel
	Movies     map[string][]xtream.Movie
	Series     map[string][]xtream.Series

	MovieDetails  map[int64]*xtream.MovieDetail
	SeriesDetails map[int64]*xtream.SeriesDetail
	Guide         map[int64][]xtream.EPGProgram
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Categories:    map[xtream.ContentType][]xtream.Category{},
		Channels:      map[string][]xtream.Channel{},
		Movies:        map[string][]xtream.Movie{},
		Series:        map[string][]xtream.Series{},
		MovieDetails:  map[int64]*xtream.MovieDetail{},
		SeriesDetails: map[int64]*xtream.SeriesDetail{},
		Guide:         map[int64][]xtream.EPGProgram{},
	}
}

// SampleDataGenerator generates realistic but fictional panel content.
type SampleDataGenerator struct {
	rng    *rand.Rand
	nextID int64
}

// NewSampleDataGenerator creates a generator with a random seed.
func NewSampleDataGenerator() *SampleDataGenerator {
	return NewSampleDataGeneratorWithSeed(rand.Int63())
}

// NewSampleDataGeneratorWithSeed creates a generator with a fixed seed for
// reproducibility. Ids always start at 1 regardless of the seed.
func NewSampleDataGeneratorWithSeed(seed int64) *SampleDataGenerator {
	return &SampleDataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *SampleDataGenerator) id() int64 {
	g.nextID++
	return g.nextID
}

// RandomBroadcaster returns a random broadcaster name.
func (g *SampleDataGenerator) RandomBroadcaster() string {
	return Broadcasters[g.rng.Intn(len(Broadcasters))]
}

// RandomQuality returns a random quality variant.
func (g *SampleDataGenerator) RandomQuality() string {
	return QualityVariants[g.rng.Intn(len(QualityVariants))]
}

// GenerateChannelName generates a channel name such as "NewsFirst Sports HD".
func (g *SampleDataGenerator) GenerateChannelName(genre string) string {
	return fmt.Sprintf("%s %s %s", g.RandomBroadcaster(), genre, g.RandomQuality())
}

// GenerateOptions sizes a generated catalog.
type GenerateOptions struct {
	CategoriesPerType int
	ItemsPerCategory  int
	SeasonsPerSeries  int
	EpisodesPerSeason int
	ProgramsPerGuide  int
}

// DefaultGenerateOptions returns a small catalog suitable for unit tests.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		CategoriesPerType: 3,
		ItemsPerCategory:  4,
		SeasonsPerSeries:  2,
		EpisodesPerSeason: 3,
		ProgramsPerGuide:  2,
	}
}

func (g *SampleDataGenerator) categories(n int) []xtream.Category {
	out := make([]xtream.Category, n)
	for i := range out {
		id := g.id()
		out[i] = xtream.Category{
			ID:   xtream.FlexString(strconv.FormatInt(id, 10)),
			Name: Genres[i%len(Genres)],
		}
	}
	return out
}

// GenerateCatalog builds a catalog with every content type populated and a
// detail record for every movie and series.
func (g *SampleDataGenerator) GenerateCatalog(opts GenerateOptions) *Catalog {
	c := NewCatalog()

	for _, ct := range []xtream.ContentType{xtream.ContentLive, xtream.ContentMovie, xtream.ContentSeries} {
		cats := g.categories(opts.CategoriesPerType)
		c.Categories[ct] = cats
		for _, cat := range cats {
			for range opts.ItemsPerCategory {
				switch ct {
				case xtream.ContentLive:
					ch := g.channel(cat)
					c.Channels[string(cat.ID)] = append(c.Channels[string(cat.ID)], ch)
					c.Guide[ch.StreamID.Int()] = g.guide(ch, opts.ProgramsPerGuide)
				case xtream.ContentMovie:
					m := g.movie(cat)
					c.Movies[string(cat.ID)] = append(c.Movies[string(cat.ID)], m)
					c.MovieDetails[m.StreamID.Int()] = &xtream.MovieDetail{
						Info:  xtream.MovieInfo{Name: m.Name, Plot: "A compelling story of human triumph.", Genre: cat.Name},
						Movie: m,
					}
				case xtream.ContentSeries:
					s := g.series(cat)
					c.Series[string(cat.ID)] = append(c.Series[string(cat.ID)], s)
					c.SeriesDetails[s.SeriesID.Int()] = g.seriesDetail(s, opts)
				}
			}
		}
	}
	return c
}

func (g *SampleDataGenerator) channel(cat xtream.Category) xtream.Channel {
	id := g.id()
	return xtream.Channel{
		Num:          xtream.FlexInt(id),
		Name:         g.GenerateChannelName(cat.Name),
		StreamType:   "live",
		StreamID:     xtream.FlexInt(id),
		StreamIcon:   fmt.Sprintf("https://logos.example.com/channel%d.png", id),
		EPGChannelID: fmt.Sprintf("ch%03d", id),
		CategoryID:   cat.ID,
	}
}

func (g *SampleDataGenerator) guide(ch xtream.Channel, n int) []xtream.EPGProgram {
	const start = 1893456000
	out := make([]xtream.EPGProgram, n)
	for i := range out {
		from := int64(start + i*1800)
		out[i] = xtream.EPGProgram{
			ID:             xtream.FlexString(strconv.FormatInt(g.id(), 10)),
			Title:          Titles[g.rng.Intn(len(Titles))],
			ChannelID:      ch.EPGChannelID,
			StartTimestamp: xtream.FlexInt(from),
			StopTimestamp:  xtream.FlexInt(from + 1800),
		}
	}
	return out
}

func (g *SampleDataGenerator) movie(cat xtream.Category) xtream.Movie {
	id := g.id()
	return xtream.Movie{
		Num:                xtream.FlexInt(id),
		Name:               fmt.Sprintf("%s %d", Titles[g.rng.Intn(len(Titles))], id),
		StreamType:         "movie",
		StreamID:           xtream.FlexInt(id),
		Rating:             xtream.FlexFloat(float64(g.rng.Intn(100)) / 10),
		CategoryID:         cat.ID,
		ContainerExtension: Extensions[g.rng.Intn(len(Extensions))],
	}
}

func (g *SampleDataGenerator) series(cat xtream.Category) xtream.Series {
	id := g.id()
	return xtream.Series{
		Num:        xtream.FlexInt(id),
		Name:       fmt.Sprintf("%s %d", Titles[g.rng.Intn(len(Titles))], id),
		SeriesID:   xtream.FlexInt(id),
		Genre:      cat.Name,
		CategoryID: cat.ID,
	}
}

func (g *SampleDataGenerator) seriesDetail(s xtream.Series, opts GenerateOptions) *xtream.SeriesDetail {
	d := &xtream.SeriesDetail{
		Info:     xtream.SeriesInfo{Name: s.Name, Genre: s.Genre, CategoryID: s.CategoryID},
		Episodes: map[string][]xtream.Episode{},
	}
	for season := 1; season <= opts.SeasonsPerSeries; season++ {
		d.Seasons = append(d.Seasons, xtream.Season{
			Name:         fmt.Sprintf("Season %d", season),
			SeasonNumber: xtream.FlexInt(season),
			EpisodeCount: xtream.FlexInt(opts.EpisodesPerSeason),
		})
		// Episodes are listed newest first, as many panels do.
		for ep := opts.EpisodesPerSeason; ep >= 1; ep-- {
			d.Episodes[strconv.Itoa(season)] = append(d.Episodes[strconv.Itoa(season)], xtream.Episode{
				ID:                 xtream.FlexString(strconv.FormatInt(g.id(), 10)),
				EpisodeNum:         xtream.FlexInt(ep),
				Title:              fmt.Sprintf("%s S%02dE%02d", s.Name, season, ep),
				ContainerExtension: Extensions[g.rng.Intn(len(Extensions))],
				Season:             xtream.FlexInt(season),
			})
		}
	}
	return d
}
