package flash

import (
	"context"
	"errors"
	"fmt"

	ds "github.com/ipfs/go-datastore"
	dslvl "github.com/ipfs/go-ds-leveldb"
)

// DatastoreFlash is a NOR flash model whose sectors are stored as values in a
// go-datastore. A missing key is an erased sector. It lets a simulated device
// keep its flash content between runs of the dcboot CLI.
type DatastoreFlash struct {
	store      ds.Datastore
	name       string
	capacity   uint32
	sectorSize uint32
}

// NewDatastoreFlash creates a device named name inside store. Several devices
// may share one store as long as their names differ.
func NewDatastoreFlash(store ds.Datastore, name string, capacity, sectorSize uint32) (*DatastoreFlash, error) {
	if store == nil {
		return nil, fmt.Errorf("datastore cannot be nil")
	}
	if sectorSize == 0 || capacity%sectorSize != 0 {
		return nil, fmt.Errorf("capacity %d is not a multiple of sector size %d", capacity, sectorSize)
	}
	return &DatastoreFlash{
		store:      store,
		name:       name,
		capacity:   capacity,
		sectorSize: sectorSize,
	}, nil
}

// OpenLevelDB opens (creating if needed) a LevelDB datastore at path.
func OpenLevelDB(path string) (*dslvl.Datastore, error) {
	store, err := dslvl.NewDatastore(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return store, nil
}

// Read implements Flash.
func (d *DatastoreFlash) Read(off uint32, p []byte) error {
	if err := d.check(off, uint32(len(p))); err != nil {
		return err
	}
	ctx := context.Background()
	for done := uint32(0); done < uint32(len(p)); {
		addr := off + done
		idx, in := addr/d.sectorSize, addr%d.sectorSize
		sector, err := d.sector(ctx, idx)
		if err != nil {
			return err
		}
		done += uint32(copy(p[done:], sector[in:]))
	}
	return nil
}

// Write implements Flash.
func (d *DatastoreFlash) Write(off uint32, p []byte) error {
	if err := d.check(off, uint32(len(p))); err != nil {
		return err
	}
	ctx := context.Background()
	for done := uint32(0); done < uint32(len(p)); {
		addr := off + done
		idx, in := addr/d.sectorSize, addr%d.sectorSize
		sector, err := d.sector(ctx, idx)
		if err != nil {
			return err
		}
		n := min(uint32(len(p))-done, d.sectorSize-in)
		for i := uint32(0); i < n; i++ {
			sector[in+i] &= p[done+i]
		}
		if err := d.store.Put(ctx, d.key(idx), sector); err != nil {
			return fmt.Errorf("put sector %d: %w", idx, err)
		}
		done += n
	}
	return nil
}

// Erase implements Flash.
func (d *DatastoreFlash) Erase(from, to uint32) error {
	if from > to {
		return fmt.Errorf("erase 0x%X-0x%X: %w", from, to, ErrOutOfBounds)
	}
	if err := d.check(from, to-from); err != nil {
		return err
	}
	if from%d.sectorSize != 0 || to%d.sectorSize != 0 {
		return fmt.Errorf("erase 0x%X-0x%X: %w", from, to, ErrUnaligned)
	}
	ctx := context.Background()
	for idx := from / d.sectorSize; idx < to/d.sectorSize; idx++ {
		if err := d.store.Delete(ctx, d.key(idx)); err != nil && !errors.Is(err, ds.ErrNotFound) {
			return fmt.Errorf("delete sector %d: %w", idx, err)
		}
	}
	return nil
}

// SectorSize implements Flash.
func (d *DatastoreFlash) SectorSize() uint32 { return d.sectorSize }

// Capacity implements Flash.
func (d *DatastoreFlash) Capacity() uint32 { return d.capacity }

func (d *DatastoreFlash) key(idx uint32) ds.Key {
	return ds.NewKey(fmt.Sprintf("/flash/%s/%08x", d.name, idx))
}

// sector returns a private copy of sector idx, erased if never written.
func (d *DatastoreFlash) sector(ctx context.Context, idx uint32) ([]byte, error) {
	b, err := d.store.Get(ctx, d.key(idx))
	if errors.Is(err, ds.ErrNotFound) {
		b = nil
	} else if err != nil {
		return nil, fmt.Errorf("get sector %d: %w", idx, err)
	}
	sector := make([]byte, d.sectorSize)
	n := copy(sector, b)
	for i := n; i < len(sector); i++ {
		sector[i] = ErasedByte
	}
	return sector, nil
}

func (d *DatastoreFlash) check(off, size uint32) error {
	if uint64(off)+uint64(size) > uint64(d.capacity) {
		return fmt.Errorf("access 0x%X+0x%X on %d-byte device: %w", off, size, d.capacity, ErrOutOfBounds)
	}
	return nil
}
