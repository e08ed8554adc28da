package config

import "errors"

var errNilConfig = errors.New("config is nil")
