package encbridge

import "github.com/pion/rtcp"

// KeyframeRequester is satisfied by VideoBridge; split out so RTCP
// wiring can be tested against a fake without spinning up a real
// encoder.
type KeyframeRequester interface {
	RequestKeyframe()
}

// HandleRTCP inspects a batch of received RTCP packets for a
// PictureLossIndication or FullIntraRequest and forwards it to req,
// grounded on the teacher's readRTCP switch over
// *rtcp.PictureLossIndication/*rtcp.FullIntraRequest. The teacher only
// logs these; here they drive the encoder's one-shot keyframe flag
// instead.
func HandleRTCP(packets []rtcp.Packet, req KeyframeRequester) {
	for _, pkt := range packets {
		switch pkt.(type) {
		case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
			req.RequestKeyframe()
		}
	}
}
