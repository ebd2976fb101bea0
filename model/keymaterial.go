package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// KeyMaterial bundles the per-participant outputs of a DKG ceremony: the
// core key share and the auxiliary cryptographic material required for
// signing. Both fields are opaque to the orchestration layer.
//
// Instances are transient. Every holder must call Wipe before releasing its
// reference, on success and failure paths alike.
type KeyMaterial struct {
	CoreShare []byte
	AuxInfo   []byte
}

// keyMaterialJSON is the persisted form: base64 fields in a UTF-8 JSON
// object.
type keyMaterialJSON struct {
	CoreShare string `json:"coreShare"`
	AuxInfo   string `json:"auxInfo"`
}

// Encode serializes the bundle to its JSON storage form.
func (k *KeyMaterial) Encode() ([]byte, error) {
	return json.Marshal(keyMaterialJSON{
		CoreShare: base64.StdEncoding.EncodeToString(k.CoreShare),
		AuxInfo:   base64.StdEncoding.EncodeToString(k.AuxInfo),
	})
}

// DecodeKeyMaterial parses the JSON storage form of a key-material bundle.
func DecodeKeyMaterial(data []byte) (*KeyMaterial, error) {
	var enc keyMaterialJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("could not parse key material: %w", err)
	}
	coreShare, err := base64.StdEncoding.DecodeString(enc.CoreShare)
	if err != nil {
		return nil, fmt.Errorf("could not decode core share: %w", err)
	}
	auxInfo, err := base64.StdEncoding.DecodeString(enc.AuxInfo)
	if err != nil {
		return nil, fmt.Errorf("could not decode aux info: %w", err)
	}
	return &KeyMaterial{CoreShare: coreShare, AuxInfo: auxInfo}, nil
}

// Wipe zero-fills both buffers. The bundle must not be used afterwards.
func (k *KeyMaterial) Wipe() {
	for i := range k.CoreShare {
		k.CoreShare[i] = 0
	}
	for i := range k.AuxInfo {
		k.AuxInfo[i] = 0
	}
}
