package pcapng

import "fmt"

// Decryption secrets types.
const (
	SecretsTLSKeyLog       uint32 = 0x544c534b
	SecretsSSHKeyLog       uint32 = 0x5353484b
	SecretsWireGuardKeyLog uint32 = 0x57474b4c
	SecretsZigBeeNWKKey    uint32 = 0x5a4e574b
	SecretsZigBeeAPSKey    uint32 = 0x5a415053
	SecretsOPCUAKeyLog     uint32 = 0x55414b4c
)

var secretsTypeNames = map[uint32]string{
	SecretsTLSKeyLog:       "TLS key log",
	SecretsSSHKeyLog:       "SSH key log",
	SecretsWireGuardKeyLog: "WireGuard key log",
	SecretsZigBeeNWKKey:    "ZigBee NWK key",
	SecretsZigBeeAPSKey:    "ZigBee APS key",
	SecretsOPCUAKeyLog:     "OPC UA key log",
}

// SecretsTypeName names a secrets type.
func SecretsTypeName(t uint32) string {
	if name, ok := secretsTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", t)
}

// DecryptionSecrets is a decryption secrets block. The payload is opaque.
type DecryptionSecrets struct {
	Type    uint32
	Data    []byte
	Options Options
	Offset  int64
}

func (*DecryptionSecrets) BlockType() uint32 { return BlockTypeDecryptionSecrets }

func readDecryptionSecrets(d *Decoder) (Block, error) {
	if err := d.Need(8, "decryption secrets"); err != nil {
		return nil, err
	}
	s := &DecryptionSecrets{Offset: d.Offset()}
	s.Type = d.Uint32()
	length := d.Uint32()
	if length > MaxSecretsLength {
		return nil, limitf("secrets length %d exceeds %d", length, MaxSecretsLength)
	}
	if int(length) > d.Remaining() {
		return nil, malformedf("secrets length %d exceeds the %d bytes left in the block", length, d.Remaining())
	}
	s.Data = d.Bytes(int(length))
	if pad := padLen(int(length)); pad <= d.Remaining() {
		d.Skip(pad)
	} else {
		d.Skip(d.Remaining())
	}

	var err error
	if s.Options, err = d.Options(); err != nil {
		return nil, err
	}
	return s, nil
}

func sizeDecryptionSecrets(e *Encoder, b Block) (int, error) {
	s := b.(*DecryptionSecrets)
	if len(s.Data) > MaxSecretsLength {
		return 0, limitf("secrets length %d exceeds %d", len(s.Data), MaxSecretsLength)
	}
	n, err := e.OptionsSize(BlockTypeDecryptionSecrets, s.Options)
	if err != nil {
		return 0, err
	}
	return 8 + roundUp4(len(s.Data)) + n, nil
}

func writeDecryptionSecrets(e *Encoder, b Block) error {
	s := b.(*DecryptionSecrets)
	e.PutUint32(s.Type)
	e.PutUint32(uint32(len(s.Data)))
	e.PutBytes(s.Data)
	e.Pad(len(s.Data))
	return e.PutOptions(BlockTypeDecryptionSecrets, s.Options)
}

func processDecryptionSecrets(r *Reader, b Block) error {
	s := b.(*DecryptionSecrets)
	r.log.WithField("type", SecretsTypeName(s.Type)).Debugf("decryption secrets of %d bytes", len(s.Data))
	r.secrets = append(r.secrets, s)
	return nil
}
