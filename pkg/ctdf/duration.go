package ctdf

import (
	"encoding/json"
	"time"
)

// Duration is stored as nanoseconds but rendered to API consumers in seconds.
type Duration time.Duration

func (d Duration) Seconds() float64 {
	return time.Duration(d).Seconds()
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{
		"seconds": d.Seconds(),
	})
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var value struct {
		Seconds float64 `json:"seconds"`
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	*d = Duration(time.Duration(value.Seconds * float64(time.Second)))

	return nil
}
