package config

import (
	"fmt"
	"strconv"
)

// setFlag remembers whether the flag was given on the command line so that
// lower-priority sources only fill in what the user did not set.
type setFlag[T any] struct {
	v     T
	set   bool
	parse func(string) (T, error)
}

func (f *setFlag[T]) String() string { return fmt.Sprint(f.v) }

func (f *setFlag[T]) Set(s string) error {
	v, err := f.parse(s)
	if err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

func strFlag(def string) *setFlag[string] {
	return &setFlag[string]{v: def, parse: func(s string) (string, error) { return s, nil }}
}

func intFlag(def int) *setFlag[int] {
	return &setFlag[int]{v: def, parse: strconv.Atoi}
}
