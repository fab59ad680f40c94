//go:build linux

package hfi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestEncodeRawAttrPadsToFourBytes(t *testing.T) {
	out := encodeRawAttr(7, []byte{1, 2, 3})

	assert.Equal(t, 0, len(out)%4)
	assert.Equal(t, uint16(7), binary.LittleEndian.Uint16(out[2:4]))
	assert.Equal(t, uint16(nlAttrHeaderLen+3), binary.LittleEndian.Uint16(out[0:2]))
}

func TestParseAttrsRoundTripsEncodedAttr(t *testing.T) {
	encoded := encodeRawAttr(9, []byte{0xAA, 0xBB})
	attrs := parseAttrs(encoded)

	require.Len(t, attrs, 1)
	assert.Equal(t, uint16(9), attrs[0].typ)
	assert.Equal(t, []byte{0xAA, 0xBB}, attrs[0].payload)
}

func TestParseAttrsWalksMultipleEntries(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeRawAttr(1, []byte{0x01})...)
	buf = append(buf, encodeRawAttr(2, []byte{0x02, 0x03})...)

	attrs := parseAttrs(buf)

	require.Len(t, attrs, 2)
	assert.Equal(t, uint16(1), attrs[0].typ)
	assert.Equal(t, uint16(2), attrs[1].typ)
}

func buildMcastGroupsReply(groupName string, groupID uint32) []byte {
	nameAttr := encodeRawAttr(unix.CTRL_ATTR_MCAST_GRP_NAME, append([]byte(groupName), 0))
	idPayload := make([]byte, 4)
	binary.LittleEndian.PutUint32(idPayload, groupID)
	idAttr := encodeRawAttr(unix.CTRL_ATTR_MCAST_GRP_ID, idPayload)

	group := append(append([]byte{}, nameAttr...), idAttr...)
	groupEntry := encodeRawAttr(1, group)
	groupsAttr := encodeRawAttr(unix.CTRL_ATTR_MCAST_GROUPS, groupEntry)

	genlHdr := []byte{unix.CTRL_CMD_NEWFAMILY, 1, 0, 0}
	body := append(genlHdr, groupsAttr...)

	msg := make([]byte, unix.SizeofNlMsghdr+len(body))
	binary.LittleEndian.PutUint32(msg[0:4], uint32(len(msg)))
	copy(msg[unix.SizeofNlMsghdr:], body)

	return msg
}

func TestParseMcastGroupIDFindsNamedGroup(t *testing.T) {
	msg := buildMcastGroupsReply(thermalGenlEventGroup, 42)

	id, ok := parseMcastGroupID(msg, thermalGenlEventGroup)
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)
}

func TestParseMcastGroupIDMissesOtherName(t *testing.T) {
	msg := buildMcastGroupsReply("some_other_group", 42)

	_, ok := parseMcastGroupID(msg, thermalGenlEventGroup)
	assert.False(t, ok)
}

func TestDecodeCapabilityEventsGroupsValuesInThrees(t *testing.T) {
	var values []byte
	for _, v := range []uint32{3, 40 << 2, 200 << 2} {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		values = append(values, encodeRawAttr(1, b)...)
	}
	capAttr := encodeRawAttr(thermalAttrCPUCapability, values)

	genlHdr := []byte{thermalEventCPUCapChange, 1, 0, 0}
	body := append(genlHdr, capAttr...)
	msg := make([]byte, unix.SizeofNlMsghdr+len(body))
	copy(msg[unix.SizeofNlMsghdr:], body)

	events := decodeCapabilityEvents(msg)

	require.Len(t, events, 1)
	assert.Equal(t, CapabilityEvent{CPU: 3, Perf: 40, Eff: 200}, events[0])
}

func TestDecodeCapabilityEventsIgnoresOtherCommands(t *testing.T) {
	genlHdr := []byte{unix.CTRL_CMD_GETFAMILY, 1, 0, 0}
	msg := make([]byte, unix.SizeofNlMsghdr+len(genlHdr))
	copy(msg[unix.SizeofNlMsghdr:], genlHdr)

	assert.Nil(t, decodeCapabilityEvents(msg))
}
