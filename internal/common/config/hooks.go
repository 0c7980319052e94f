package config

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/streamhouse/quotasuite/internal/quotasuite/configuration"
)

// Viper's DecodeHook option replaces any previously set hook, so all hooks
// ride in a single composed chain.
var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		QuotaOverridesHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)),
}

// QuotaOverridesHookFunc decodes override tables written in the broker's
// flat "identity=value[,identity=value...]" grammar into maps. Malformed
// entries fail the config load, so bad override syntax is rejected before
// any workload runs.
func QuotaOverridesHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// check that src and target types are valid
		if f.Kind() != reflect.String || t != reflect.TypeOf(map[string]float64{}) {
			return data, nil
		}
		return configuration.ParseQuotaOverrides(data.(string))
	}
}
