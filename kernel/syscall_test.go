package kernel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/hnx"
)

var testBands = []hnx.Band{
	{Name: "low", First: 0x01, Last: 0x0F, Domain: hnx.DomainInternal},
	{Name: "high", First: 0x10, Last: 0x1F, Domain: hnx.DomainPosix},
}

func nop(*Call) error { return nil }

func TestRegistry(t *testing.T) {
	r := newRegistry(testBands, []Descriptor{
		{NR: 0x12, Name: "c", Handler: nop},
		{NR: 0x01, Name: "a", Handler: nop},
		{NR: 0x0F, Name: "b", Handler: nop},
	})

	type row struct {
		NR     hnx.NR
		Name   string
		Band   string
		Domain hnx.Domain
	}
	var got []row
	for _, d := range r.Descriptors() {
		got = append(got, row{d.NR, d.Name, d.Band.Name, d.Domain()})
	}
	want := []row{
		{0x01, "a", "low", hnx.DomainInternal},
		{0x0F, "b", "low", hnx.DomainInternal},
		{0x12, "c", "high", hnx.DomainPosix},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("descriptors mismatch (-want +got):\n%s", diff)
	}

	require.NotNil(t, r.Get(0x12))
	assert.Equal(t, "c", r.Get(0x12).Name)
	assert.Nil(t, r.Get(0x02))
	assert.Nil(t, r.Get(0x20))
	assert.Nil(t, r.Get(0))
}

func TestRegistryPanics(t *testing.T) {
	tests := []struct {
		name  string
		bands []hnx.Band
		descs []Descriptor
	}{
		{
			name:  "overlapping bands",
			bands: []hnx.Band{{Name: "a", First: 1, Last: 10}, {Name: "b", First: 10, Last: 20}},
		},
		{
			name:  "unordered bands",
			bands: []hnx.Band{{Name: "a", First: 11, Last: 20}, {Name: "b", First: 1, Last: 10}},
		},
		{
			name:  "empty band",
			bands: []hnx.Band{{Name: "a", First: 5, Last: 4}},
		},
		{
			name:  "outside every band",
			bands: testBands,
			descs: []Descriptor{{NR: 0x40, Name: "x", Handler: nop}},
		},
		{
			name:  "duplicate number",
			bands: testBands,
			descs: []Descriptor{{NR: 0x03, Name: "x", Handler: nop}, {NR: 0x03, Name: "y", Handler: nop}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { newRegistry(tt.bands, tt.descs) })
		})
	}
}

func TestKernelRegistry(t *testing.T) {
	k := newTestKernel(t)
	descs := k.Syscall().Descriptors()
	require.Len(t, descs, 52)
	names := make(map[string]bool)
	for i, d := range descs {
		assert.False(t, names[d.Name], "duplicate name %s", d.Name)
		names[d.Name] = true
		assert.NotNil(t, d.Handler, d.Name)
		assert.True(t, d.Band.Contains(d.NR), d.Name)
		if i > 0 {
			assert.Less(t, descs[i-1].NR, d.NR)
		}
		band, ok := hnx.BandOf(d.NR)
		require.True(t, ok, d.Name)
		assert.Equal(t, band, d.Band, d.Name)
	}

	for nr, want := range map[hnx.NR]string{
		hnx.NR_channel_create: "channel_create",
		hnx.NR_getpid:         "getpid",
		hnx.NR_write:          "write",
		hnx.NR_dlsym:          "dlsym",
		hnx.NR_ep_recv:        "ep_recv",
	} {
		d := k.Syscall().Get(nr)
		require.NotNil(t, d, want)
		assert.Equal(t, want, d.Name)
	}
	assert.Equal(t, hnx.DomainPosix, k.Syscall().Get(hnx.NR_mmap).Domain())
	assert.Equal(t, hnx.DomainInternal, k.Syscall().Get(hnx.NR_vmo_create).Domain())
}
