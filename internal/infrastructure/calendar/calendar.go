package calendar

import (
	_ "embed"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

//go:embed panama.yaml
var panamaYAML []byte

type fixedHoliday struct {
	Month int    `yaml:"month"`
	Day   int    `yaml:"day"`
	Name  string `yaml:"name"`
	Since int    `yaml:"since"`
}

type easterHoliday struct {
	Offset int    `yaml:"offset"`
	Name   string `yaml:"name"`
}

type datedHoliday struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

type definition struct {
	Name          string          `yaml:"name"`
	ObserveSunday bool            `yaml:"observe_sunday"`
	Fixed         []fixedHoliday  `yaml:"fixed"`
	EasterOffsets []easterHoliday `yaml:"easter_offsets"`
	Extra         []datedHoliday  `yaml:"extra"`
}

// Calendar is a jurisdiction's public holidays, expanded lazily per year.
type Calendar struct {
	def   definition
	extra map[time.Time]string

	mu    sync.Mutex
	years map[int]map[time.Time]string
}

// Panama returns the embedded default calendar.
func Panama() (*Calendar, error) {
	return Parse(panamaYAML)
}

// Load reads a calendar file, or the embedded default when path is empty.
func Load(path string) (*Calendar, error) {
	if path == "" {
		return Panama()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday calendar: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Calendar, error) {
	var def definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode holiday calendar: %w", err)
	}
	for _, h := range def.Fixed {
		if h.Month < 1 || h.Month > 12 || h.Day < 1 || h.Day > 31 {
			return nil, fmt.Errorf("holiday %q: invalid month/day %d/%d", h.Name, h.Month, h.Day)
		}
	}
	extra := make(map[time.Time]string, len(def.Extra))
	for _, h := range def.Extra {
		d, err := domain.ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		extra[d] = h.Name
	}
	return &Calendar{def: def, extra: extra, years: make(map[int]map[time.Time]string)}, nil
}

func (c *Calendar) Name() string { return c.def.Name }

func (c *Calendar) IsHoliday(day time.Time) bool {
	_, ok := c.HolidayName(day)
	return ok
}

// HolidayName returns the holiday falling on day, if any.
func (c *Calendar) HolidayName(day time.Time) (string, bool) {
	d := domain.DateOf(day)
	if name, ok := c.extra[d]; ok {
		return name, true
	}
	name, ok := c.year(d.Year())[d]
	return name, ok
}

func (c *Calendar) year(y int) map[time.Time]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if days, ok := c.years[y]; ok {
		return days
	}

	days := make(map[time.Time]string)
	for _, h := range c.def.Fixed {
		if h.Since > 0 && y < h.Since {
			continue
		}
		d := time.Date(y, time.Month(h.Month), h.Day, 0, 0, 0, 0, time.UTC)
		days[d] = h.Name
		if c.def.ObserveSunday && d.Weekday() == time.Sunday {
			observed := d.AddDate(0, 0, 1)
			if _, taken := days[observed]; !taken {
				days[observed] = h.Name + " (observed)"
			}
		}
	}
	easter := easterSunday(y)
	for _, h := range c.def.EasterOffsets {
		days[easter.AddDate(0, 0, h.Offset)] = h.Name
	}
	c.years[y] = days
	return days
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

var _ domain.HolidaySet = (*Calendar)(nil)
