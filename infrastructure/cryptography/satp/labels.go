package satp

import "anytun/application"

// effectiveLabel folds (direction, role, logical label) into the 32-bit
// constant the counter layout XORs into the AES-CTR starting block
// (spec §4.1 table). The constants are chosen so that inbound-at-LEFT
// equals outbound-at-RIGHT and vice versa, which is what lets two
// correctly-configured peers derive identical per-direction keystreams.
var effectiveLabels = [2][3]uint32{
	application.RoleLeft: {
		application.LabelEnc:  0xDA4B9237, // OUTBOUND
		application.LabelAuth: 0xC1DFD96E,
		application.LabelSalt: 0x1B645389,
	},
	application.RoleRight: {
		application.LabelEnc:  0x356A192B,
		application.LabelAuth: 0xAC3478D6,
		application.LabelSalt: 0x77DE68DA,
	},
}

// inboundEffectiveLabels holds the INBOUND row, which is the other role's
// OUTBOUND constant for the same label.
var inboundEffectiveLabels = [2][3]uint32{
	application.RoleLeft: {
		application.LabelEnc:  0x356A192B,
		application.LabelAuth: 0xAC3478D6,
		application.LabelSalt: 0x77DE68DA,
	},
	application.RoleRight: {
		application.LabelEnc:  0xDA4B9237,
		application.LabelAuth: 0xC1DFD96E,
		application.LabelSalt: 0x1B645389,
	},
}

// effectiveLabel returns the folded label constant for (dir, role, label).
func effectiveLabel(dir application.Direction, role application.Role, label application.Label) uint32 {
	if dir == application.DirectionOutbound {
		return effectiveLabels[role][label]
	}
	return inboundEffectiveLabels[role][label]
}
