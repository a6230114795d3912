// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cpumodel

// Intel family 6 model numbers, the public x86 microarchitecture
// identifiers. Names follow the kernel's intel-family.h: the _X
// suffix marks the Xeon (server) part, _D the micro-server part,
// _L the mobile part.
const (
	ModelWestmere           = 0x25
	ModelWestmereEP         = 0x2C
	ModelWestmereEX         = 0x2F
	ModelSandyBridge        = 0x2A
	ModelSandyBridgeX       = 0x2D
	ModelIvyBridge          = 0x3A
	ModelIvyBridgeX         = 0x3E
	ModelHaswell            = 0x3C
	ModelHaswellX           = 0x3F
	ModelBroadwell          = 0x3D
	ModelBroadwellG         = 0x47
	ModelBroadwellX         = 0x4F
	ModelBroadwellD         = 0x56
	ModelAtomSilvermont     = 0x37
	ModelAtomSilvermontD    = 0x4D
	ModelAtomSilvermontMID  = 0x4A
	ModelSkylakeL           = 0x4E
	ModelSkylake            = 0x5E
	ModelSkylakeX           = 0x55
	ModelKabyLakeL          = 0x8E
	ModelKabyLake           = 0x9E
	ModelIceLakeX           = 0x6A
	ModelIceLakeD           = 0x6C
	ModelAlderLake          = 0x97
	ModelAlderLakeL         = 0x9A
	ModelRaptorLake         = 0xB7
	ModelRaptorLakeP        = 0xBA
	ModelRaptorLakeS        = 0xBF
	ModelMeteorLake         = 0xAC
	ModelMeteorLakeL        = 0xAA
	ModelSapphireRapidsX    = 0x8F
	ModelEmeraldRapidsX     = 0xCF
	ModelGraniteRapidsX     = 0xAD
	ModelGraniteRapidsD     = 0xAE
)
