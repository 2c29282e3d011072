package hfsplus

import "encoding/binary"

const nodeDescriptorSize = 14
const headerRecSize = 106

// packLeafNodes packs records into as many NodeSize leaf nodes as needed,
// linking them via forward/backward links, and returns the marshaled
// nodes plus the index of the first and last leaf node (spec §4.6 step
// 2's node-capacity rule, simplified to one tree level — see the
// package's scope-decision doc comment).
func packLeafNodes(records []leafRecord, firstNodeNum uint32) (nodes [][]byte, firstLeaf, lastLeaf uint32) {
	var cur []leafRecord
	curSize := nodeDescriptorSize

	flush := func() {
		nodes = append(nodes, marshalLeafNode(cur, firstNodeNum+uint32(len(nodes))))
		cur = nil
		curSize = nodeDescriptorSize
	}

	for _, r := range records {
		recSize := len(r.key) + len(r.data)
		if recSize%2 != 0 {
			recSize++
		}
		// +2 for this record's own offset-table entry.
		if curSize+recSize+2 > NodeSize && len(cur) > 0 {
			flush()
		}
		cur = append(cur, r)
		curSize += recSize + 2
	}
	if len(cur) > 0 || len(nodes) == 0 {
		flush()
	}

	for i := range nodes {
		fwd, back := uint32(0), uint32(0)
		if i+1 < len(nodes) {
			fwd = firstNodeNum + uint32(i+1)
		}
		if i > 0 {
			back = firstNodeNum + uint32(i-1)
		}
		binary.BigEndian.PutUint32(nodes[i][0:4], fwd)
		binary.BigEndian.PutUint32(nodes[i][4:8], back)
	}
	return nodes, firstNodeNum, firstNodeNum + uint32(len(nodes)) - 1
}

// marshalLeafNode renders one B-tree leaf node: descriptor, records
// packed from the front, and a backward-growing offset table (the
// standard HFS+ B-tree node layout) ending in the node's free-space
// offset.
func marshalLeafNode(records []leafRecord, nodeNum uint32) []byte {
	buf := make([]byte, NodeSize)
	buf[8] = byte(kBTLeafNode)
	buf[9] = 1 // height: leaf nodes are always height 1
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(records)))

	offsets := make([]uint16, 0, len(records)+1)
	pos := nodeDescriptorSize
	for _, r := range records {
		offsets = append(offsets, uint16(pos))
		copy(buf[pos:], r.key)
		copy(buf[pos+len(r.key):], r.data)
		recSize := len(r.key) + len(r.data)
		if recSize%2 != 0 {
			recSize++
		}
		pos += recSize
	}
	offsets = append(offsets, uint16(pos)) // free-space offset, last entry

	offTablePos := NodeSize
	for i := len(offsets) - 1; i >= 0; i-- {
		offTablePos -= 2
		binary.BigEndian.PutUint16(buf[offTablePos:offTablePos+2], offsets[i])
	}
	return buf
}

// marshalHeaderNode renders the catalog B-tree's header node (node 0):
// descriptor, BTHeaderRec, 128 bytes of user data (left zeroed), and a
// map record covering totalNodes (spec §4.6 step 2's hfsp_nnodes).
func marshalHeaderNode(rootNode, leafRecords, firstLeaf, lastLeaf, totalNodes uint32) []byte {
	buf := make([]byte, NodeSize)
	buf[8] = byte(kBTHeaderNode)
	buf[9] = 0
	binary.BigEndian.PutUint16(buf[10:12], 3) // header rec, user data, map rec

	hdr := buf[nodeDescriptorSize : nodeDescriptorSize+headerRecSize]
	binary.BigEndian.PutUint16(hdr[0:2], 1) // tree depth: one leaf level
	binary.BigEndian.PutUint32(hdr[2:6], rootNode)
	binary.BigEndian.PutUint32(hdr[6:10], leafRecords)
	binary.BigEndian.PutUint32(hdr[10:14], firstLeaf)
	binary.BigEndian.PutUint32(hdr[14:18], lastLeaf)
	binary.BigEndian.PutUint16(hdr[18:20], NodeSize)
	binary.BigEndian.PutUint16(hdr[20:22], 640) // max key length (HFS+ catalog key cap)
	binary.BigEndian.PutUint32(hdr[22:26], totalNodes)
	// free nodes (hdr[26:30]) stays zero: this writer never grows the
	// tree after building it once.

	recordOffsets := []uint16{
		nodeDescriptorSize,
		uint16(nodeDescriptorSize + headerRecSize),
		uint16(nodeDescriptorSize + headerRecSize + 128),
		NodeSize,
	}
	offTablePos := NodeSize
	for i := len(recordOffsets) - 1; i >= 0; i-- {
		offTablePos -= 2
		binary.BigEndian.PutUint16(buf[offTablePos:offTablePos+2], recordOffsets[i])
	}
	return buf
}

// BuildCatalogBTree renders the complete catalog B-tree byte stream
// (header node followed by every leaf node), given the flattened,
// globally-key-sorted record list.
func BuildCatalogBTree(records []leafRecord) []byte {
	leaves, firstLeaf, lastLeaf := packLeafNodes(records, 1)
	totalNodes := uint32(1 + len(leaves))
	header := marshalHeaderNode(firstLeaf, uint32(len(records)), firstLeaf, lastLeaf, totalNodes)

	out := make([]byte, 0, int(totalNodes)*NodeSize)
	out = append(out, header...)
	for _, l := range leaves {
		out = append(out, l...)
	}
	return out
}

// BuildEmptyExtentsBTree renders a minimal, empty extents-overflow
// B-tree: a single header node describing zero leaf records (spec §4.6
// step 4: "a minimal extents B-tree header").
func BuildEmptyExtentsBTree() []byte {
	return marshalHeaderNode(0, 0, 0, 0, 1)
}
