package model

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCAConfig configures a principal component analysis transform.
type PCAConfig struct {
	NComponents int `mapstructure:"n_components" validate:"required,gt=0"`
}

// PCA projects its input onto the leading principal components.
type PCA struct {
	cfg PCAConfig
}

// NewPCA returns an unfitted PCA transform.
func NewPCA(cfg PCAConfig) (*PCA, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return &PCA{cfg: cfg}, nil
}

// NewPCAFromKwargs decodes kwargs into a PCAConfig and returns a PCA.
func NewPCAFromKwargs(kwargs map[string]any) (Transform, error) {
	var cfg PCAConfig
	if err := decodeKwargs(kwargs, &cfg); err != nil {
		return nil, err
	}
	return &PCA{cfg: cfg}, nil
}

// Fit computes the principal directions of x. Each direction is signed so
// that its largest-magnitude loading is positive, which makes repeated
// fits on the same data produce identical output.
func (p *PCA) Fit(x *table.Frame) (Fitted, error) {
	n, d := x.Len(), len(x.Columns())
	k := p.cfg.NComponents
	if n < 2 {
		return nil, fmt.Errorf("%w: pca needs at least 2 rows, got %d", ErrInsufficientData, n)
	}
	if k > min(n, d) {
		return nil, fmt.Errorf("%w: n_components=%d exceeds min(rows=%d, columns=%d)", ErrInsufficientData, k, n, d)
	}
	a, err := toDense(x)
	if err != nil {
		return nil, err
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(a, nil); !ok {
		return nil, fmt.Errorf("pca: singular value decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	loadings := mat.NewDense(d, k, nil)
	loadings.Copy(vecs.Slice(0, d, 0, k))
	for j := range k {
		col := mat.Col(nil, j, loadings)
		if col[argmaxAbs(col)] < 0 {
			for i := range col {
				loadings.Set(i, j, -col[i])
			}
		}
	}

	var total float64
	for _, v := range vars {
		total += v
	}
	ratio := make([]float64, k)
	for j := range ratio {
		if total > 0 {
			ratio[j] = vars[j] / total
		}
	}

	return &FittedPCA{
		inputs:   x.Columns(),
		columns:  table.IntColumns(k),
		means:    columnMeans(x),
		loadings: loadings,
		ratio:    ratio,
	}, nil
}

// FittedPCA is the learned state of a PCA transform.
type FittedPCA struct {
	inputs   []string
	columns  []string
	means    []float64
	loadings *mat.Dense // d x k
	ratio    []float64
}

var _ Invertible = (*FittedPCA)(nil)

// Columns returns "0".."k-1".
func (f *FittedPCA) Columns() []string {
	return slices.Clone(f.columns)
}

// Inputs returns the columns the transform was fit on.
func (f *FittedPCA) Inputs() []string {
	return slices.Clone(f.inputs)
}

// ExplainedVarianceRatio returns the share of total variance carried by
// each retained component.
func (f *FittedPCA) ExplainedVarianceRatio() []float64 {
	return slices.Clone(f.ratio)
}

// Transform projects the centered input onto the retained components.
func (f *FittedPCA) Transform(x *table.Frame) (*table.Frame, error) {
	sel, err := x.Select(f.inputs...)
	if err != nil {
		return nil, err
	}
	if sel.IsEmpty() {
		return table.Empty(f.Columns()...), nil
	}
	a, err := toDense(sel)
	if err != nil {
		return nil, err
	}
	centered := subtractRow(a, f.means)

	var out mat.Dense
	out.Mul(centered, f.loadings)
	return fromDense(x.Index(), f.Columns(), &out)
}

// Inverse maps component scores back to the input columns.
func (f *FittedPCA) Inverse(y *table.Frame) (*table.Frame, error) {
	sel, err := y.Select(f.columns...)
	if err != nil {
		return nil, err
	}
	if sel.IsEmpty() {
		return table.Empty(f.Inputs()...), nil
	}
	a, err := toDense(sel)
	if err != nil {
		return nil, err
	}

	var out mat.Dense
	out.Mul(a, f.loadings.T())
	r, c := out.Dims()
	for i := range r {
		for j := range c {
			out.Set(i, j, out.At(i, j)+f.means[j])
		}
	}
	return fromDense(y.Index(), f.Inputs(), &out)
}

// toDense copies a non-empty frame into an n x d row-major matrix,
// rejecting non-finite values.
func toDense(x *table.Frame) (*mat.Dense, error) {
	n, cols := x.Len(), x.Columns()
	data := make([]float64, 0, n*len(cols))
	for r := range n {
		for c, v := range x.Row(r) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: column %q at %s", ErrNonFinite, cols[c], x.Time(r).Format(time.RFC3339))
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(n, len(cols), data), nil
}

// fromDense builds a frame from an n x len(columns) matrix.
func fromDense(index []time.Time, columns []string, m mat.Matrix) (*table.Frame, error) {
	data := make([][]float64, len(columns))
	for c := range columns {
		data[c] = mat.Col(nil, c, m)
	}
	return table.New(index, columns, data)
}

func subtractRow(a *mat.Dense, row []float64) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 { return v - row[j] }, a)
	return out
}

func columnMeans(x *table.Frame) []float64 {
	cols := x.Columns()
	means := make([]float64, len(cols))
	for i, name := range cols {
		vals, _ := x.Column(name)
		means[i] = stat.Mean(vals, nil)
	}
	return means
}

func argmaxAbs(v []float64) int {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	return best
}
