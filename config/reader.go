package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Read reads a config from the given file. Environment variables referenced in the file are
// substituted before decoding.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies where, if applicable, the file
// the reader originated from. Unknown keys are rejected.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	var attrs map[string]interface{}
	if err := json.NewDecoder(r).Decode(&attrs); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}

	cfg := &Config{ConfigFilePath: originalPath}
	if err := DecodeAttributes(attrs, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DecodeAttributes decodes a loosely typed attribute map, such as a parameter dictionary, into
// a struct tagged with json names. Durations may be given as strings like "250ms".
func DecodeAttributes(attrs map[string]interface{}, to interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      to,
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(attrs)
}
