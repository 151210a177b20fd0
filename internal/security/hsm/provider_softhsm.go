//go:build softhsm

package hsm

import (
	"context"
	"crypto"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"

	"github.com/alovak/cardflow-merchant/internal/security"
)

// SoftHSMProvider signs authorization data with merchant RSA keys held in a PKCS#11 token.
// The private key object is looked up by CKA_LABEL == keyRef (the merchant id).
// Enabled with build tag softhsm so default builds do not need a PKCS#11 library.
type SoftHSMProvider struct {
	libPath string
	slotID  uint
	pin     string

	mu   sync.Mutex // a PKCS#11 session is not safe for concurrent use
	p11  *pkcs11.Ctx
	sess pkcs11.SessionHandle
}

func NewSoftHSMProvider(libPath string, slotID uint, pin string) *SoftHSMProvider {
	return &SoftHSMProvider{libPath: libPath, slotID: slotID, pin: pin}
}

func (p *SoftHSMProvider) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.p11 = pkcs11.New(p.libPath)
	if p.p11 == nil {
		return fmt.Errorf("load pkcs11 lib %s failed", p.libPath)
	}
	if err := p.p11.Initialize(); err != nil {
		return fmt.Errorf("pkcs11 initialize: %w", err)
	}
	sess, err := p.p11.OpenSession(p.slotID, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		_ = p.p11.Finalize()
		return fmt.Errorf("pkcs11 open session: %w", err)
	}
	p.sess = sess
	if err := p.p11.Login(p.sess, pkcs11.CKU_USER, p.pin); err != nil {
		_ = p.p11.CloseSession(p.sess)
		_ = p.p11.Finalize()
		return fmt.Errorf("pkcs11 login: %w", err)
	}
	return nil
}

func (p *SoftHSMProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.p11 != nil {
		if p.sess != 0 {
			_ = p.p11.Logout(p.sess)
			_ = p.p11.CloseSession(p.sess)
		}
		_ = p.p11.Finalize()
		p.p11.Destroy()
		p.p11 = nil
	}
}

// mechanism maps a digest to the matching hash-and-sign RSA PKCS#1 v1.5 mechanism.
func mechanism(hash crypto.Hash) (uint, error) {
	switch hash {
	case 0, crypto.SHA1:
		return pkcs11.CKM_SHA1_RSA_PKCS, nil
	case crypto.SHA256:
		return pkcs11.CKM_SHA256_RSA_PKCS, nil
	case crypto.SHA384:
		return pkcs11.CKM_SHA384_RSA_PKCS, nil
	case crypto.SHA512:
		return pkcs11.CKM_SHA512_RSA_PKCS, nil
	default:
		return 0, fmt.Errorf("digest %v has no pkcs11 mechanism: %w", hash, security.ErrSigning)
	}
}

func (p *SoftHSMProvider) findKey(keyRef string) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, keyRef),
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
	}
	if err := p.p11.FindObjectsInit(p.sess, template); err != nil {
		return 0, fmt.Errorf("find key %s: %v: %w", keyRef, err, security.ErrKeyNotFound)
	}
	objs, _, err := p.p11.FindObjects(p.sess, 1)
	_ = p.p11.FindObjectsFinal(p.sess)
	if err != nil {
		return 0, fmt.Errorf("find key %s: %v: %w", keyRef, err, security.ErrKeyNotFound)
	}
	if len(objs) == 0 {
		return 0, fmt.Errorf("no private key labelled %s: %w", keyRef, security.ErrKeyNotFound)
	}
	attrs, err := p.p11.GetAttributeValue(p.sess, objs[0], []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, nil),
	})
	if err != nil || len(attrs) == 0 {
		return 0, fmt.Errorf("key %s type unreadable: %w", keyRef, security.ErrInvalidKey)
	}
	if !isRSA(attrs[0].Value) {
		return 0, fmt.Errorf("key %s is not RSA: %w", keyRef, security.ErrInvalidKey)
	}
	return objs[0], nil
}

// isRSA decodes a CK_ULONG key type in host byte order (little endian on supported platforms).
func isRSA(v []byte) bool {
	var kt uint64
	for i := len(v) - 1; i >= 0; i-- {
		kt = kt<<8 | uint64(v[i])
	}
	return kt == pkcs11.CKK_RSA
}

// Sign implements security.Signer; the token hashes data itself.
func (p *SoftHSMProvider) Sign(ctx context.Context, keyRef string, hash crypto.Hash, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mech, err := mechanism(hash)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.p11 == nil {
		return nil, fmt.Errorf("pkcs11 provider not open: %w", security.ErrSigning)
	}
	key, err := p.findKey(keyRef)
	if err != nil {
		return nil, err
	}
	if err := p.p11.SignInit(p.sess, []*pkcs11.Mechanism{pkcs11.NewMechanism(mech, nil)}, key); err != nil {
		return nil, fmt.Errorf("pkcs11 sign init: %v: %w", err, security.ErrSigning)
	}
	sig, err := p.p11.Sign(p.sess, data)
	if err != nil {
		return nil, fmt.Errorf("pkcs11 sign: %v: %w", err, security.ErrSigning)
	}
	return sig, nil
}

var _ security.Signer = (*SoftHSMProvider)(nil)
