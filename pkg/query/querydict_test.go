package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RayforceDB/rayforce/pkg/value"
)

func selectQueryDict(t *testing.T) *value.Value {
	t.Helper()
	keys := value.NewSymbolVector([]string{"from", "where", "total"})
	from := priceTable(t)
	where := value.NewList([]*value.Value{value.NewSymbol(">"), value.NewSymbol("price"), value.NewF64(15)})
	total := value.NewSymbol("price")
	d, err := value.NewDict(keys, value.NewList([]*value.Value{from, where, total}))
	require.NoError(t, err)
	return d
}

func TestQueryFromDictSeparatesReservedAndProjectedKeys(t *testing.T) {
	d := selectQueryDict(t)
	q, err := QueryFromDict(d)
	require.NoError(t, err)
	require.NotNil(t, q.From)
	require.NotNil(t, q.Where)
	require.Nil(t, q.By)
	require.Len(t, q.Project, 1)
	require.Equal(t, "total", q.Project[0].Name)
}

func TestQueryFromDictRequiresFrom(t *testing.T) {
	keys := value.NewSymbolVector([]string{"total"})
	d, err := value.NewDict(keys, value.NewList([]*value.Value{value.NewSymbol("price")}))
	require.NoError(t, err)
	_, err = QueryFromDict(d)
	require.Error(t, err)
}

func TestEvalTopLevelDispatchesBareExpression(t *testing.T) {
	vmctx := newTestVM(t)
	expr := value.NewList([]*value.Value{value.NewSymbol("+"), value.NewF64(1), value.NewF64(2)})
	v, err := EvalTopLevel(vmctx, expr)
	require.NoError(t, err)
	require.Equal(t, 3.0, v.F64())
}
