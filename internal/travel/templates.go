package travel

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"travel_tracker/internal/models"
)

// CheckpointTemplate holds per-stage defaults for naming, radius and prompt text.
// Title and Message may reference {checkpoint} and {hotel}.
type CheckpointTemplate struct {
	Name         string  `yaml:"name"`
	RadiusMeters float64 `yaml:"radius_meters"`
	Title        string  `yaml:"title"`
	Message      string  `yaml:"message"`
}

type Templates map[models.CheckpointType]CheckpointTemplate

func DefaultTemplates() Templates {
	return Templates{
		models.CheckpointAirportArrival: {
			Name:         "Airport arrival",
			RadiusMeters: 1500,
			Title:        "Welcome! Have you landed?",
			Message:      "It looks like you're near {checkpoint}. Tap to confirm you've arrived.",
		},
		models.CheckpointSecurity: {
			Name:         "Security and customs",
			RadiusMeters: 300,
			Title:        "Through security?",
			Message:      "Let us know once you're through {checkpoint}.",
		},
		models.CheckpointMeetDriver: {
			Name:         "Meet your driver",
			RadiusMeters: 100,
			Title:        "Your driver is nearby",
			Message:      "You're close to the pickup point. Scan your driver's code to confirm.",
		},
		models.CheckpointEnRoute: {
			Name:         "On the way to the hotel",
			RadiusMeters: 2000,
			Title:        "On your way",
			Message:      "You're en route to {hotel}. Sit back and relax.",
		},
		models.CheckpointHotelArrival: {
			Name:         "Hotel arrival",
			RadiusMeters: 150,
			Title:        "Arrived at your hotel?",
			Message:      "Looks like you've reached {hotel}. Tap to confirm check-in.",
		},
	}
}

// LoadTemplates reads YAML overrides keyed by checkpoint type on top of the
// defaults. Missing fields keep their default. An empty path returns the defaults.
func LoadTemplates(path string) (Templates, error) {
	t := DefaultTemplates()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint templates: %w", err)
	}
	var overrides map[string]CheckpointTemplate
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse checkpoint templates: %w", err)
	}
	for key, o := range overrides {
		ct := models.CheckpointType(key)
		if !ct.Valid() {
			return nil, fmt.Errorf("checkpoint templates: unknown checkpoint type %q", key)
		}
		if o.RadiusMeters < 0 {
			return nil, fmt.Errorf("checkpoint templates: %s radius must be >= 0", key)
		}
		cur := t[ct]
		if o.Name != "" {
			cur.Name = o.Name
		}
		if o.RadiusMeters > 0 {
			cur.RadiusMeters = o.RadiusMeters
		}
		if o.Title != "" {
			cur.Title = o.Title
		}
		if o.Message != "" {
			cur.Message = o.Message
		}
		t[ct] = cur
	}
	return t, nil
}

func (t Templates) get(ct models.CheckpointType) CheckpointTemplate {
	if tpl, ok := t[ct]; ok {
		return tpl
	}
	return DefaultTemplates()[ct]
}

// prompt renders the notification title and message for a checkpoint.
func (t Templates) prompt(p *models.TravelProfile, cp *models.JourneyCheckpoint) (string, string) {
	tpl := t.get(cp.CheckpointType)
	hotel := p.HotelName
	if hotel == "" {
		hotel = "your hotel"
	}
	r := strings.NewReplacer("{checkpoint}", cp.CheckpointName, "{hotel}", hotel)
	title := r.Replace(tpl.Title)
	if title == "" {
		title = cp.CheckpointName
	}
	return title, r.Replace(tpl.Message)
}
