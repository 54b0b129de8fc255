package diskimg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestReadBlock(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	data := make([]byte, 3*sectorSize)
	for i := range data {
		data[i] = byte(i / sectorSize)
	}
	if err := afero.WriteFile(fs, "card.img", data, 0644); err != nil {
		t.Fatal(err)
	}

	img, err := Open(fs, "card.img")
	if err != nil {
		t.Fatal(err)
	}
	defer img.Close()

	if got, want := img.Size(), int64(3*sectorSize); got != want {
		t.Fatalf("Size = %d, want %d", got, want)
	}

	var buf [512]byte
	if err := img.ReadBlock(1, &buf); err != nil {
		t.Fatal(err)
	}
	var want [512]byte
	for i := range want {
		want[i] = 1
	}
	if diff := cmp.Diff(want, buf); diff != "" {
		t.Fatalf("unexpected sector 1: diff (-want +got):\n%s", diff)
	}
}

func TestReadBlockBeyondEnd(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "card.img", make([]byte, sectorSize), 0644); err != nil {
		t.Fatal(err)
	}

	img, err := Open(fs, "card.img")
	if err != nil {
		t.Fatal(err)
	}
	defer img.Close()

	var buf [512]byte
	if err := img.ReadBlock(7, &buf); err == nil {
		t.Fatal("read past end of image succeeded, want error")
	}
}
