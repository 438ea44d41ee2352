package remote

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aweris/thinjar/internal/digest"
)

const (
	LayerTargetSize = 5 * 1024 * 1024  // 5MB target
	LayerMinSize    = 2 * 1024 * 1024  // 2MB minimum before combining
	LayerSoftMax    = 10 * 1024 * 1024 // 10MB soft maximum
	recordHashLen   = digest.HexLen
)

// ErrCorruptLayer is returned when a packed layer cannot be decoded.
var ErrCorruptLayer = errors.New("remote: corrupt layer")

// ShardInfo records which layer carries a shard and the hash of the shard's
// contents at push time.
type ShardInfo struct {
	Hash  string `json:"hash"`
	Layer string `json:"layer"`
}

// GroupByShard buckets libraries by the shard of their address.
func GroupByShard(libs map[digest.Address][]byte) map[string]map[digest.Address][]byte {
	result := make(map[string]map[digest.Address][]byte)
	for addr, data := range libs {
		if result[addr.Shard] == nil {
			result[addr.Shard] = make(map[digest.Address][]byte)
		}
		result[addr.Shard][addr] = data
	}
	return result
}

// ShardHash fingerprints a shard from its addresses and sizes. Addresses
// already commit to content, so sizes are enough to tell truncated files
// apart without reading them.
func ShardHash(sizes map[digest.Address]int64) string {
	if len(sizes) == 0 {
		return ""
	}

	h := sha256.New()
	for _, addr := range sortedAddresses(sizes) {
		h.Write([]byte(addr.Hash()))
		binary.Write(h, binary.BigEndian, sizes[addr])
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// Sizes maps each library to its length.
func Sizes(libs map[digest.Address][]byte) map[digest.Address]int64 {
	sizes := make(map[digest.Address]int64, len(libs))
	for addr, data := range libs {
		sizes[addr] = int64(len(data))
	}
	return sizes
}

// PackLayer packs libraries into the layer format:
// [hash 64B][length 8B][data]... in address order.
func PackLayer(libs map[digest.Address][]byte) []byte {
	var buf bytes.Buffer
	lenBuf := make([]byte, 8)

	for _, addr := range sortedAddresses(libs) {
		data := libs[addr]
		buf.WriteString(addr.Hash())
		binary.BigEndian.PutUint64(lenBuf, uint64(len(data)))
		buf.Write(lenBuf)
		buf.Write(data)
	}
	return buf.Bytes()
}

// UnpackLayer decodes a layer built by PackLayer.
func UnpackLayer(data []byte) (map[digest.Address][]byte, error) {
	result := make(map[digest.Address][]byte)
	buf := bytes.NewReader(data)
	hashBuf := make([]byte, recordHashLen)

	for buf.Len() > 0 {
		if _, err := io.ReadFull(buf, hashBuf); err != nil {
			return nil, fmt.Errorf("%w: read hash: %v", ErrCorruptLayer, err)
		}
		addr, err := digest.AddressOf(string(hashBuf))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptLayer, err)
		}

		var length uint64
		if err := binary.Read(buf, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("%w: read length: %v", ErrCorruptLayer, err)
		}
		if length > uint64(buf.Len()) {
			return nil, fmt.Errorf("%w: %s claims %d bytes, %d left", ErrCorruptLayer, addr, length, buf.Len())
		}

		lib := make([]byte, length)
		if _, err := io.ReadFull(buf, lib); err != nil {
			return nil, fmt.Errorf("%w: read data: %v", ErrCorruptLayer, err)
		}
		result[addr] = lib
	}

	return result, nil
}

// BuildLayerPlan groups shards, in order, into layers of roughly
// LayerTargetSize, never splitting a shard.
func BuildLayerPlan(shardSizes map[string]int64) [][]string {
	shards := make([]string, 0, len(shardSizes))
	for s := range shardSizes {
		shards = append(shards, s)
	}
	slices.Sort(shards)

	var layers [][]string
	var current []string
	var size int64

	for _, shard := range shards {
		shardSize := shardSizes[shard]

		if len(current) == 0 {
			current = append(current, shard)
			size = shardSize
			continue
		}

		newSize := size + shardSize
		if newSize <= LayerSoftMax {
			current = append(current, shard)
			size = newSize
		} else if size < LayerMinSize && newSize <= 2*LayerSoftMax {
			current = append(current, shard)
			size = newSize
		} else {
			layers = append(layers, current)
			current = []string{shard}
			size = shardSize
		}
	}

	if len(current) > 0 {
		layers = append(layers, current)
	}

	return layers
}

// CollectShards merges the libraries of the given shards.
func CollectShards(shards []string, byShard map[string]map[digest.Address][]byte) map[digest.Address][]byte {
	result := make(map[digest.Address][]byte)
	for _, shard := range shards {
		for addr, data := range byShard[shard] {
			result[addr] = data
		}
	}
	return result
}

// ShardSizes totals the library bytes of every shard.
func ShardSizes(byShard map[string]map[digest.Address][]byte) map[string]int64 {
	result := make(map[string]int64)
	for shard, libs := range byShard {
		var total int64
		for _, data := range libs {
			total += int64(len(data))
		}
		result[shard] = total
	}
	return result
}

func sortedAddresses[V any](m map[digest.Address]V) []digest.Address {
	addrs := make([]digest.Address, 0, len(m))
	for a := range m {
		addrs = append(addrs, a)
	}
	slices.SortFunc(addrs, func(a, b digest.Address) int {
		return strings.Compare(a.Hash(), b.Hash())
	})
	return addrs
}
