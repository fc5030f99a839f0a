package logging

import "go.uber.org/zap"

// Project and Path use the same keys in every package, so one file can be
// followed from upload through listing to content fetch.

// Project tags an entry with a project id.
func Project(id string) zap.Field { return zap.String("project", id) }

// Path tags an entry with a project-relative file path.
func Path(p string) zap.Field { return zap.String("path", p) }

// Key tags an entry with an object storage key.
func Key(k string) zap.Field { return zap.String("key", k) }

// Backend tags an entry with a storage backend type.
func Backend(t string) zap.Field { return zap.String("backend", t) }

// Size tags an entry with a byte count.
func Size(n int64) zap.Field { return zap.Int64("size", n) }

func String(key, val string) zap.Field { return zap.String(key, val) }

func Err(err error) zap.Field { return zap.Error(err) }
