package terminal

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestFlagUint64Parse(t *testing.T) {
	flag := FlagBase[uint64]{Name: "test"}
	name, val, err := flag.Parse("0x1")
	require.NoError(t, err)
	require.Equal(t, "test", name)
	require.Equal(t, uint64(1), val)

	_, _, err = flag.Parse("one")
	require.Error(t, err)
}

func TestFlagAmountParse(t *testing.T) {
	_, val, err := FlagBase[*big.Int]{Name: "value"}.Parse("1000000000000000000000")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000000", val.(*big.Int).String())

	_, _, err = FlagBase[*big.Int]{Name: "value"}.Parse("-1")
	require.Error(t, err)
}

func TestParseArgs(t *testing.T) {
	flags := []Flag{
		FlagBase[common.Address]{"from", []string{"-f"}},
		FlagBase[*big.Int]{"value", []string{"-v"}},
	}
	values, pos, err := parseArgs(flags, "ballot -f 0x00000000000000000000000000000000000000aa [a,b] --value 3")
	require.NoError(t, err)
	require.Equal(t, []string{"ballot", "[a,b]"}, pos)
	require.Equal(t, common.HexToAddress("0xaa"), values["from"])
	require.Zero(t, values["value"].(*big.Int).Cmp(big.NewInt(3)))

	_, _, err = parseArgs(flags, "x --value")
	require.Error(t, err)
	_, _, err = parseArgs(flags, "x --from nobody")
	require.Error(t, err)
}
