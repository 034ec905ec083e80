package poolsync

import (
	"strings"

	"github.com/spf13/viper"
)

// envConfig reads FULL and ARCHIVE from the process environment via viper,
// the same AutomaticEnv pattern the teacher reaches for instead of raw
// os.Getenv — it costs nothing here and leaves room for a future config
// file to be layered in without touching call sites.
type envConfig struct {
	v *viper.Viper
}

func newEnvConfig() *envConfig {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &envConfig{v: v}
}

func (e *envConfig) full() string    { return e.v.GetString("full") }
func (e *envConfig) archive() string { return e.v.GetString("archive") }

// EndpointsFromEnv sets the full and archive RPC endpoints by reading the
// FULL and ARCHIVE environment variables, per spec.md §6's configuration
// inputs. Equivalent to calling Endpoints(os.Getenv("FULL"),
// os.Getenv("ARCHIVE")), routed through viper so a future on-disk config
// could supply the same keys.
func (b *Builder) EndpointsFromEnv() *Builder {
	cfg := newEnvConfig()
	return b.Endpoints(cfg.full(), cfg.archive())
}
