package format_test

import (
	"testing"

	"github.com/javi11/fwunpack/internal/checksum"
	"github.com/javi11/fwunpack/internal/container"
	fwerrors "github.com/javi11/fwunpack/internal/errors"
	"github.com/javi11/fwunpack/internal/fixture"
	"github.com/javi11/fwunpack/internal/format"
	"github.com/javi11/fwunpack/internal/format/app"
	"github.com/javi11/fwunpack/internal/format/bin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFormats(t *testing.T) {
	assert.Equal(t, []string{app.FormatName, bin.FormatName}, format.GetFormats())

	_, ok := format.GetFormat("app")
	assert.True(t, ok)
	_, ok = format.GetFormat("zip")
	assert.False(t, ok)
}

func TestRegisterFormat_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		format.RegisterFormat(app.FormatName, nil, nil)
	})
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{name: "app", data: fixture.App(fixture.AppBlock{Name: "SYSTEM", ChunkSize: 4}), want: app.FormatName},
		{name: "bin", data: fixture.Bin(fixture.BinPackage{}), want: bin.FormatName},
		{name: "garbage", data: make([]byte, 512), wantErr: true},
		{name: "empty", data: nil, wantErr: true},
		{name: "app bad signature", data: fixture.App(fixture.AppBlock{Name: "SYSTEM", ChunkSize: 4, Signature: []byte{1, 2, 3, 4}}), wantErr: true},
		{name: "bin bad tag", data: fixture.Bin(fixture.BinPackage{TimestampTag: 9}), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := format.Detect(container.FromBytes(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, fwerrors.IsMalformed(err), err)
				assert.Equal(t, fwerrors.ExitStructural, fwerrors.ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDecoder(t *testing.T) {
	opts := format.Options{Engine: checksum.NewEngine(nil)}

	d, err := format.NewDecoder("auto", container.FromBytes(fixture.Bin(fixture.BinPackage{})), opts)
	require.NoError(t, err)
	assert.Equal(t, bin.FormatName, d.Format())

	d, err = format.NewDecoder(app.FormatName, container.FromBytes(nil), opts)
	require.NoError(t, err)
	assert.Equal(t, app.FormatName, d.Format())

	_, err = format.NewDecoder("zip", container.FromBytes(nil), opts)
	assert.Error(t, err)

	_, err = format.NewDecoder(app.FormatName, container.FromBytes(nil), format.Options{})
	assert.Error(t, err)
}

func TestUnitKind_String(t *testing.T) {
	assert.Equal(t, "extracted", format.UnitExtracted.String())
	assert.Equal(t, "skipped", format.UnitSkipped.String())
	assert.Equal(t, "UnitKind(9)", format.UnitKind(9).String())
}
