package arena

import "fmt"

// Validate walks the whole tree and checks the red-black invariants, the
// ordering of keys, parent links and slot accounting.
func (t *RedBlackTree[K, V]) Validate() error {
	root := t.hdr.Root
	if t.color(root) != black {
		return fmt.Errorf("%w: root %d is red", ErrCorrupt, root)
	}
	if t.parent(root) != Sentinel {
		return fmt.Errorf("%w: root %d has parent %d", ErrCorrupt, root, t.parent(root))
	}

	count, _, err := t.checkSubtree(root, int(t.hdr.BumpIndex))
	if err != nil {
		return err
	}
	if uint64(count) != t.hdr.Size {
		return fmt.Errorf("%w: header size %d, reachable nodes %d", ErrCorrupt, t.hdr.Size, count)
	}

	free := 0
	for addr := t.hdr.FreeListHead; addr != Sentinel; addr = t.node(addr).Left {
		if addr > t.hdr.BumpIndex || t.node(addr).Color != freed {
			return fmt.Errorf("%w: free list entry %d is not a freed slot", ErrCorrupt, addr)
		}
		free++
		if free > len(t.nodes) {
			return fmt.Errorf("%w: free list cycle", ErrCorrupt)
		}
	}
	if count+free != int(t.hdr.BumpIndex) {
		return fmt.Errorf("%w: %d live + %d free != %d allocated", ErrCorrupt, count, free, t.hdr.BumpIndex)
	}

	var (
		prev    K
		started bool
	)
	for k := range t.All() {
		if started && prev.Compare(k) >= 0 {
			return fmt.Errorf("%w: keys out of order", ErrCorrupt)
		}
		prev, started = k, true
	}
	return nil
}

// checkSubtree returns the node count and black height below addr.
func (t *RedBlackTree[K, V]) checkSubtree(addr uint32, budget int) (int, int, error) {
	if addr == Sentinel {
		return 0, 1, nil
	}
	if int(addr) > budget {
		return 0, 0, fmt.Errorf("%w: address %d beyond allocated slots", ErrCorrupt, addr)
	}
	n := t.node(addr)
	if n.Color == freed {
		return 0, 0, fmt.Errorf("%w: freed slot %d is linked", ErrCorrupt, addr)
	}
	if n.Color == red && (t.color(n.Left) == red || t.color(n.Right) == red) {
		return 0, 0, fmt.Errorf("%w: red node %d has a red child", ErrCorrupt, addr)
	}
	for _, child := range [...]uint32{n.Left, n.Right} {
		if child != Sentinel && t.parent(child) != addr {
			return 0, 0, fmt.Errorf("%w: node %d parent link is broken", ErrCorrupt, child)
		}
	}

	lc, lh, err := t.checkSubtree(n.Left, budget)
	if err != nil {
		return 0, 0, err
	}
	rc, rh, err := t.checkSubtree(n.Right, budget)
	if err != nil {
		return 0, 0, err
	}
	if lh != rh {
		return 0, 0, fmt.Errorf("%w: black height mismatch at %d", ErrCorrupt, addr)
	}
	if lc+rc+1 > budget {
		return 0, 0, fmt.Errorf("%w: cycle below %d", ErrCorrupt, addr)
	}
	if n.Color == black {
		lh++
	}
	return lc + rc + 1, lh, nil
}
