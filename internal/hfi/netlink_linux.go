//go:build linux

package hfi

import (
	"context"
	"encoding/binary"

	"codeberg.org/mutker/socpowerhintd/internal/errors"
	"codeberg.org/mutker/socpowerhintd/internal/logger"
	"golang.org/x/sys/unix"
)

// Generic-netlink ABI for the kernel's thermal family (linux/thermal.h).
// There is no generated Go binding for this family anywhere in the
// ecosystem, so these mirror the kernel header's numeric values directly,
// the same way a hand-rolled netlink consumer in C would.
const (
	thermalGenlFamilyName    = "thermal"
	thermalGenlEventGroup    = "thermal_event"
	thermalAttrCPUCapability = 4
	thermalEventCPUCapChange = 5
)

// nlAttrHeaderLen is the wire size of a struct nlattr (len uint16, type
// uint16); payload follows, padded to a 4-byte boundary.
const nlAttrHeaderLen = 4

// netlinkStream is the real EventStream, backed by an AF_NETLINK/
// NETLINK_GENERIC socket subscribed to the thermal_event multicast group.
type netlinkStream struct {
	fd     int
	seq    uint32
	pid    uint32
	queued []CapabilityEvent
}

// newNetlinkStream opens the socket, resolves the thermal family and its
// thermal_event multicast group id via CTRL_CMD_GETFAMILY, and joins that
// group.
func newNetlinkStream() (*netlinkStream, error) {
	errFactory := errors.New()

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_GENERIC)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrNetlinkFailed, err)
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, errFactory.Wrap(errors.ErrNetlinkFailed, err)
	}

	s := &netlinkStream{fd: fd, pid: uint32(unix.Getpid())}

	groupID, err := s.resolveThermalEventGroup()
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_NETLINK, unix.NETLINK_ADD_MEMBERSHIP, int(groupID)); err != nil {
		unix.Close(fd)
		return nil, errFactory.Wrap(errors.ErrNetlinkFailed, err)
	}

	return s, nil
}

// resolveThermalEventGroup sends a CTRL_CMD_GETFAMILY request for the
// "thermal" family and extracts the "thermal_event" multicast group id
// from the nested CTRL_ATTR_MCAST_GROUPS attribute of the reply.
func (s *netlinkStream) resolveThermalEventGroup() (uint32, error) {
	errFactory := errors.New()

	req := buildGetFamilyRequest(s.nextSeq(), s.pid, thermalGenlFamilyName)
	if err := unix.Send(s.fd, req, 0); err != nil {
		return 0, errFactory.Wrap(errors.ErrNetlinkFailed, err)
	}

	buf := make([]byte, 8192)
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrNetlinkFailed, err)
	}

	groupID, ok := parseMcastGroupID(buf[:n], thermalGenlEventGroup)
	if !ok {
		return 0, errFactory.New(errors.ErrNetlinkDecode)
	}

	return groupID, nil
}

func (s *netlinkStream) nextSeq() uint32 {
	s.seq++
	return s.seq
}

// Next returns the next decoded capability-change event, pulling and
// decoding additional netlink datagrams as needed. Non-CPU_CAPABILITY_CHANGE
// command codes are logged at debug level by decodeCapabilityEvents and
// dropped.
func (s *netlinkStream) Next(ctx context.Context) (CapabilityEvent, error) {
	errFactory := errors.New()

	for {
		if len(s.queued) > 0 {
			ev := s.queued[0]
			s.queued = s.queued[1:]
			return ev, nil
		}

		select {
		case <-ctx.Done():
			return CapabilityEvent{}, ctx.Err()
		default:
		}

		buf := make([]byte, 8192)
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return CapabilityEvent{}, errFactory.Wrap(errors.ErrNetlinkFailed, err)
		}

		s.queued = decodeCapabilityEvents(buf[:n])
	}
}

func (s *netlinkStream) Close() error {
	return unix.Close(s.fd)
}

// buildGetFamilyRequest assembles a CTRL_CMD_GETFAMILY request carrying a
// single CTRL_ATTR_FAMILY_NAME attribute.
func buildGetFamilyRequest(seq, pid uint32, family string) []byte {
	nameAttr := encodeStringAttr(unix.CTRL_ATTR_FAMILY_NAME, family)
	genlHdr := []byte{unix.CTRL_CMD_GETFAMILY, 1, 0, 0} // cmd, version, reserved(2)

	body := append(genlHdr, nameAttr...)
	total := unix.SizeofNlMsghdr + len(body)

	msg := make([]byte, total)
	binary.LittleEndian.PutUint32(msg[0:4], uint32(total))
	binary.LittleEndian.PutUint16(msg[4:6], unix.GENL_ID_CTRL)
	binary.LittleEndian.PutUint16(msg[6:8], unix.NLM_F_REQUEST)
	binary.LittleEndian.PutUint32(msg[8:12], seq)
	binary.LittleEndian.PutUint32(msg[12:16], pid)
	copy(msg[unix.SizeofNlMsghdr:], body)

	return msg
}

func encodeStringAttr(attrType uint16, value string) []byte {
	payload := append([]byte(value), 0) // NUL-terminated, per NLA_STRING
	return encodeRawAttr(attrType, payload)
}

func encodeRawAttr(attrType uint16, payload []byte) []byte {
	length := nlAttrHeaderLen + len(payload)
	padded := align4(length)

	out := make([]byte, padded)
	binary.LittleEndian.PutUint16(out[0:2], uint16(length))
	binary.LittleEndian.PutUint16(out[2:4], attrType)
	copy(out[nlAttrHeaderLen:], payload)

	return out
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// nestedAttr is one parsed netlink attribute: its type and raw payload.
type nestedAttr struct {
	typ     uint16
	payload []byte
}

// parseAttrs walks a flat sequence of nlattr-framed entries.
func parseAttrs(data []byte) []nestedAttr {
	var attrs []nestedAttr

	for len(data) >= nlAttrHeaderLen {
		length := int(binary.LittleEndian.Uint16(data[0:2]))
		typ := binary.LittleEndian.Uint16(data[2:4])
		if length < nlAttrHeaderLen || length > len(data) {
			break
		}

		attrs = append(attrs, nestedAttr{typ: typ & 0x3fff, payload: data[nlAttrHeaderLen:length]})

		advance := align4(length)
		if advance > len(data) {
			break
		}
		data = data[advance:]
	}

	return attrs
}

// parseMcastGroupID finds the multicast group named groupName inside a
// CTRL_CMD_GETFAMILY reply's nested CTRL_ATTR_MCAST_GROUPS attribute.
func parseMcastGroupID(msg []byte, groupName string) (uint32, bool) {
	if len(msg) < unix.SizeofNlMsghdr {
		return 0, false
	}
	body := msg[unix.SizeofNlMsghdr:]
	if len(body) < 4 {
		return 0, false
	}
	body = body[4:] // skip struct genlmsghdr (cmd, version, reserved)

	for _, top := range parseAttrs(body) {
		if top.typ != unix.CTRL_ATTR_MCAST_GROUPS {
			continue
		}
		for _, group := range parseAttrs(top.payload) {
			var name string
			var id uint32
			var haveID bool
			for _, sub := range parseAttrs(group.payload) {
				switch sub.typ {
				case unix.CTRL_ATTR_MCAST_GRP_NAME:
					name = trimNulString(sub.payload)
				case unix.CTRL_ATTR_MCAST_GRP_ID:
					if len(sub.payload) >= 4 {
						id = binary.LittleEndian.Uint32(sub.payload)
						haveID = true
					}
				}
			}
			if name == groupName && haveID {
				return id, true
			}
		}
	}

	return 0, false
}

func trimNulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// decodeCapabilityEvents decodes every CPU_CAPABILITY_CHANGE event found in
// a netlink datagram. The kernel's nested THERMAL_GENL_ATTR_CPU_CAPABILITY
// attribute is a flat run of u32 attributes grouped in threes: (cpu, perf,
// eff), with perf and eff pre-scaled and needing a >>2 correction back to
// [0,255].
func decodeCapabilityEvents(msg []byte) []CapabilityEvent {
	if len(msg) < unix.SizeofNlMsghdr+4 {
		return nil
	}

	cmd := msg[unix.SizeofNlMsghdr]
	if cmd != thermalEventCPUCapChange {
		logger.Debug().Uint8("cmd", cmd).Msg("ignoring non-capability thermal netlink event")
		return nil
	}

	body := msg[unix.SizeofNlMsghdr+4:]

	var events []CapabilityEvent
	for _, attr := range parseAttrs(body) {
		if attr.typ != thermalAttrCPUCapability {
			continue
		}

		var values []uint32
		for _, nested := range parseAttrs(attr.payload) {
			if len(nested.payload) < 4 {
				continue
			}
			values = append(values, binary.LittleEndian.Uint32(nested.payload))
		}

		for i := 0; i+3 <= len(values); i += 3 {
			events = append(events, CapabilityEvent{
				CPU:  int32(values[i]),
				Perf: int32(values[i+1] >> 2),
				Eff:  int32(values[i+2] >> 2),
			})
		}
	}

	return events
}
