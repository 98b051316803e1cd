// Package backends selects and opens the configured storage backend.
// It is the only package that knows every concrete store; the rest of
// the gateway sees lrs.Backend
package backends

import (
	"lrsgate/internal/lrs"
	"lrsgate/internal/lrs/ch"
	"lrsgate/internal/lrs/es"
	"lrsgate/internal/lrs/fs"
	"lrsgate/internal/lrs/mongo"
	"lrsgate/internal/lrs/remote"
	"lrsgate/internal/platform/config"
	perr "lrsgate/internal/platform/errors"
)

// Backend kind names accepted in LRS_BACKEND
const (
	KindES         = "es"
	KindMongo      = "mongo"
	KindClickHouse = "clickhouse"
	KindFS         = "fs"
	KindRemote     = "remote"
)

// Open reads the backend selection and its per-store env view and
// constructs the concrete backend. Construction errors are fatal to the
// caller; connections themselves are dialed lazily by each store
func Open(cfg config.Conf) (lrs.Backend, error) {
	kind := cfg.Prefix("LRS_").MayEnum("BACKEND", KindFS,
		KindES, KindMongo, KindClickHouse, KindFS, KindRemote)

	switch kind {
	case KindES:
		v := cfg.Prefix("ES_")
		return es.Open(es.Config{
			Addrs:    v.MayCSV("ADDRS", []string{"http://localhost:9200"}),
			Username: v.MayString("USERNAME", ""),
			Password: v.MayString("PASSWORD", ""),
			Index:    v.MayString("INDEX", "statements"),
		})
	case KindMongo:
		v := cfg.Prefix("MONGO_")
		return mongo.Open(mongo.Config{
			URI:        v.MayString("URI", "mongodb://localhost:27017"),
			Database:   v.MayString("DATABASE", "lrs"),
			Collection: v.MayString("COLLECTION", "statements"),
		})
	case KindClickHouse:
		v := cfg.Prefix("CLICKHOUSE_")
		return ch.Open(ch.Config{
			Addrs:       v.MayCSV("ADDRS", []string{"localhost:9000"}),
			Database:    v.MayString("DATABASE", "lrs"),
			Username:    v.MayString("USERNAME", "default"),
			Password:    v.MayString("PASSWORD", ""),
			DialTimeout: v.MayDuration("DIAL_TIMEOUT", 0),
		})
	case KindFS:
		v := cfg.Prefix("FS_")
		return fs.Open(fs.Config{
			Path: v.MayString("PATH", "data/statements.jsonl"),
		})
	case KindRemote:
		v := cfg.Prefix("REMOTE_")
		return remote.Open(remote.Config{
			BaseURL:  v.MayString("BASE_URL", ""),
			Username: v.MayString("USERNAME", ""),
			Password: v.MayString("PASSWORD", ""),
			Timeout:  v.MayDuration("TIMEOUT", 0),
		})
	default:
		return nil, perr.InvalidArgf("unknown backend %q", kind)
	}
}
