// Package factory builds dataflow nodes from a type name and a flat
// keyword-argument mapping.
//
// The set of node types is closed and enumerable: every name maps to a
// constructor in a registry, Names lists them, and unknown names fail with
// dataflow.ErrUnsupportedNodeType. Keyword arguments are decoded into the
// explicit config struct of each node type, rejecting unknown keys, and
// validated before the node is constructed.
package factory

import (
	"fmt"
	"path/filepath"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/model"
	"github.com/randalmurphal/dataflow/pkg/dataflow/registry"
	"github.com/randalmurphal/dataflow/pkg/dataflow/source"
	"github.com/randalmurphal/dataflow/pkg/dataflow/vendor"
)

// DefaultVendor is the reader used by the kibot node types.
const DefaultVendor = "kibot"

// Deps carries the collaborators node constructors need.
type Deps struct {
	// Readers maps vendor names to readers.
	Readers map[string]vendor.Reader
	// DataDir resolves relative disk paths. When set, a CSV reader over it
	// is available as vendor "csv" unless Readers already has one.
	DataDir string
	// Transforms resolves model transform names. Nil means
	// model.DefaultTransforms().
	Transforms *model.Registry
}

// Constructor builds a node from its id and keyword arguments.
type Constructor func(nid string, kwargs map[string]any, deps Deps) (dataflow.Node, error)

// Factory maps node type names to constructors.
type Factory struct {
	types *registry.Registry[string, Constructor]
	deps  Deps
}

// New returns a factory holding the built-in node types.
func New(deps Deps) *Factory {
	if deps.Transforms == nil {
		deps.Transforms = model.DefaultTransforms()
	}
	readers := make(map[string]vendor.Reader, len(deps.Readers)+1)
	for name, r := range deps.Readers {
		readers[name] = r
	}
	if _, ok := readers["csv"]; !ok && deps.DataDir != "" {
		readers["csv"] = vendor.NewCSVReader(deps.DataDir)
	}
	deps.Readers = readers

	f := &Factory{types: registry.New[string, Constructor](), deps: deps}
	f.types.MustRegister("arma", newArma)
	f.types.MustRegister("multivariate_normal", newMultivariateNormal)
	f.types.MustRegister("real_time_synthetic", newRealTimeSynthetic)
	f.types.MustRegister("disk", newDisk)
	f.types.MustRegister("vendor", newVendor(""))
	f.types.MustRegister("kibot", newVendor(DefaultVendor))
	f.types.MustRegister("vendor_multi_col", newVendorColumn(""))
	f.types.MustRegister("kibot_multi_col", newVendorColumn(DefaultVendor))
	f.types.MustRegister("unsupervised", newUnsupervised)
	f.types.MustRegister("residualizer", newResidualizer)
	f.types.MustRegister("column_transformer", newColumnTransformer)
	return f
}

// Register adds a node type. Registering an existing name fails.
func (f *Factory) Register(name string, ctor Constructor) error {
	return f.types.Register(name, ctor)
}

// Names returns the supported node type names in sorted order.
func (f *Factory) Names() []string {
	return f.types.Keys()
}

// Has reports whether typeName is supported.
func (f *Factory) Has(typeName string) bool {
	return f.types.Has(typeName)
}

// New constructs node nid of type typeName. No I/O is performed.
func (f *Factory) New(nid, typeName string, kwargs map[string]any) (dataflow.Node, error) {
	ctor, ok := f.types.Get(typeName)
	if !ok {
		return nil, fmt.Errorf("node %s: %w: %q (supported: %v)", nid, dataflow.ErrUnsupportedNodeType, typeName, f.Names())
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	n, err := ctor(nid, kwargs, f.deps)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", nid, typeName, err)
	}
	return n, nil
}

// FromConfig constructs a node from a Config holding a "type" key and an
// optional "kwargs" mapping.
func (f *Factory) FromConfig(nid string, c config.Config) (dataflow.Node, error) {
	typeName, err := c.Require("type")
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nid, err)
	}
	name, ok := typeName.(string)
	if !ok {
		return nil, fmt.Errorf("node %s: %w: type must be a string, got %T", nid, config.ErrInvalidConfig, typeName)
	}
	kwargs := map[string]any{}
	if c.Has("kwargs") {
		sub, err := c.Sub("kwargs")
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nid, err)
		}
		kwargs = sub.Raw()
	}
	return f.New(nid, name, kwargs)
}

func decode[T any](kwargs map[string]any) (T, error) {
	var cfg T
	err := config.Decode(kwargs, &cfg)
	return cfg, err
}

func newArma(nid string, kwargs map[string]any, _ Deps) (dataflow.Node, error) {
	cfg, err := decode[source.ArmaConfig](kwargs)
	if err != nil {
		return nil, err
	}
	return source.NewArmaGenerator(nid, cfg)
}

func newMultivariateNormal(nid string, kwargs map[string]any, _ Deps) (dataflow.Node, error) {
	cfg, err := decode[source.MultivariateNormalConfig](kwargs)
	if err != nil {
		return nil, err
	}
	return source.NewMultivariateNormal(nid, cfg)
}

func newRealTimeSynthetic(nid string, kwargs map[string]any, _ Deps) (dataflow.Node, error) {
	cfg, err := decode[source.RealTimeSyntheticConfig](kwargs)
	if err != nil {
		return nil, err
	}
	return source.NewRealTimeSynthetic(nid, cfg)
}

func newDisk(nid string, kwargs map[string]any, deps Deps) (dataflow.Node, error) {
	cfg, err := decode[source.DiskConfig](kwargs)
	if err != nil {
		return nil, err
	}
	if deps.DataDir != "" && !filepath.IsAbs(cfg.FilePath) {
		cfg.FilePath = filepath.Join(deps.DataDir, cfg.FilePath)
	}
	return source.NewDisk(nid, cfg)
}

// vendorKwargs adds the reader name to a vendor source config.
type vendorKwargs struct {
	Reader              string `mapstructure:"reader"`
	source.VendorConfig `mapstructure:",squash"`
}

type vendorColumnKwargs struct {
	Reader                    string `mapstructure:"reader"`
	source.VendorColumnConfig `mapstructure:",squash"`
}

func reader(deps Deps, name, fallback string) (vendor.Reader, error) {
	if name == "" {
		name = fallback
	}
	if name == "" {
		return nil, fmt.Errorf("%w: reader", config.ErrMissingKey)
	}
	r, ok := deps.Readers[name]
	if !ok {
		return nil, fmt.Errorf("%w: no vendor reader %q", config.ErrInvalidConfig, name)
	}
	return r, nil
}

func newVendor(defaultReader string) Constructor {
	return func(nid string, kwargs map[string]any, deps Deps) (dataflow.Node, error) {
		kw, err := decode[vendorKwargs](kwargs)
		if err != nil {
			return nil, err
		}
		r, err := reader(deps, kw.Reader, defaultReader)
		if err != nil {
			return nil, err
		}
		return source.NewVendorReader(nid, r, kw.VendorConfig)
	}
}

func newVendorColumn(defaultReader string) Constructor {
	return func(nid string, kwargs map[string]any, deps Deps) (dataflow.Node, error) {
		kw, err := decode[vendorColumnKwargs](kwargs)
		if err != nil {
			return nil, err
		}
		r, err := reader(deps, kw.Reader, defaultReader)
		if err != nil {
			return nil, err
		}
		return source.NewVendorColumnReader(nid, r, kw.VendorColumnConfig)
	}
}

func buildTransform(kwargs map[string]any, deps Deps) (model.ModelConfig, model.Transform, error) {
	cfg, err := decode[model.ModelConfig](kwargs)
	if err != nil {
		return cfg, nil, err
	}
	t, err := model.Build(deps.Transforms, cfg.Transform, cfg.TransformKwargs)
	return cfg, t, err
}

func newUnsupervised(nid string, kwargs map[string]any, deps Deps) (dataflow.Node, error) {
	cfg, t, err := buildTransform(kwargs, deps)
	if err != nil {
		return nil, err
	}
	return model.NewUnsupervisedModel(nid, cfg.XVars, t)
}

func newResidualizer(nid string, kwargs map[string]any, deps Deps) (dataflow.Node, error) {
	cfg, t, err := buildTransform(kwargs, deps)
	if err != nil {
		return nil, err
	}
	return model.NewResidualizer(nid, cfg.XVars, t)
}

func newColumnTransformer(nid string, kwargs map[string]any, _ Deps) (dataflow.Node, error) {
	cfg, err := decode[model.ColumnConfig](kwargs)
	if err != nil {
		return nil, err
	}
	return model.NewColumnTransformer(nid, cfg)
}
