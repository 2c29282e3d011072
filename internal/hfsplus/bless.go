package hfsplus

// BlessRole names one of the small fixed set of blessing roles the
// Finder-info fields of a volume header can point at (spec §4.6 step 7).
type BlessRole int

const (
	BlessSystemFolder BlessRole = iota
	BlessOS9Folder
	BlessIntelBootFile
	blessRoleCount
)

// BlessTable maps blessing roles to catalog IDs. Roles with no assigned
// CNID are left at zero, meaning "not blessed".
type BlessTable [blessRoleCount]uint32

// Apply writes t's blessed CNIDs into the volume header's Finder-info
// block (bytes 76:108, 8 uint32 slots; this writer only populates the
// first three, matching the roles BlessTable names).
func (t BlessTable) Apply(headerBuf []byte) {
	for i, cnid := range t {
		off := 76 + i*4
		headerBuf[off] = byte(cnid >> 24)
		headerBuf[off+1] = byte(cnid >> 16)
		headerBuf[off+2] = byte(cnid >> 8)
		headerBuf[off+3] = byte(cnid)
	}
}
