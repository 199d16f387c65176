package dataset

import (
	"context"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// NetCDFLoader reads the root group of a NetCDF3 or NetCDF4 file.
type NetCDFLoader struct{}

// Load implements Loader.
func (NetCDFLoader) Load(ctx context.Context, path string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	group, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer group.Close()

	ds := New()
	ds.Attributes = attributes(group.Attributes())
	for _, name := range group.ListVariables() {
		v, err := group.GetVariable(name)
		if err != nil {
			return nil, err
		}
		ds.Variables[name] = &Variable{
			Dimensions: v.Dimensions,
			Attributes: attributes(v.Attributes),
			Values:     v.Values,
		}
	}
	return ds, nil
}

func attributes(m api.AttributeMap) map[string]any {
	out := map[string]any{}
	if m == nil {
		return out
	}
	for _, k := range m.Keys() {
		if v, ok := m.Get(k); ok {
			out[k] = v
		}
	}
	return out
}
