package harvest

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var stationCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

type Route struct {
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
}

func (r Route) Validate() error {
	if !stationCodePattern.MatchString(r.Origin) {
		return fmt.Errorf("invalid origin station code %q", r.Origin)
	}
	if !stationCodePattern.MatchString(r.Destination) {
		return fmt.Errorf("invalid destination station code %q", r.Destination)
	}
	if r.Origin == r.Destination {
		return fmt.Errorf("route %s has the same origin and destination", r.Origin)
	}

	return nil
}

type RoutesFile struct {
	Routes []Route `yaml:"routes"`
}

func ParseRoutes(data []byte) ([]Route, error) {
	var routesFile RoutesFile
	if err := yaml.Unmarshal(data, &routesFile); err != nil {
		return nil, err
	}

	for _, route := range routesFile.Routes {
		if err := route.Validate(); err != nil {
			return nil, err
		}
	}

	return routesFile.Routes, nil
}

func LoadRoutes(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseRoutes(data)
}
