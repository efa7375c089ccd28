package signature

// Reference is one enrolled signature image and the signer who owns it.
type Reference struct {
	SignerID int64
	Image    []byte
}

// Pool is a read-only snapshot of enrolled reference images grouped by
// signer. Signers keep the order of their first appearance and every
// signer in the pool has at least one image.
type Pool struct {
	signers []int64
	images  map[int64][][]byte
}

// NewPool groups references by signer. References without image bytes are skipped.
func NewPool(refs []Reference) *Pool {
	p := &Pool{images: make(map[int64][][]byte)}
	for _, ref := range refs {
		if len(ref.Image) == 0 {
			continue
		}
		if _, ok := p.images[ref.SignerID]; !ok {
			p.signers = append(p.signers, ref.SignerID)
		}
		p.images[ref.SignerID] = append(p.images[ref.SignerID], ref.Image)
	}
	return p
}

// NewSignerPool builds a single-signer pool from that signer's images.
func NewSignerPool(signerID int64, images [][]byte) *Pool {
	refs := make([]Reference, len(images))
	for i, img := range images {
		refs[i] = Reference{SignerID: signerID, Image: img}
	}
	return NewPool(refs)
}

// Len returns the number of distinct signers.
func (p *Pool) Len() int {
	return len(p.signers)
}

// Size returns the total number of reference images.
func (p *Pool) Size() int {
	total := 0
	for _, imgs := range p.images {
		total += len(imgs)
	}
	return total
}

// Signers returns the signer ids in enumeration order.
func (p *Pool) Signers() []int64 {
	out := make([]int64, len(p.signers))
	copy(out, p.signers)
	return out
}

// Signer returns the signer id at position i of the enumeration order.
func (p *Pool) Signer(i int) int64 {
	return p.signers[i]
}

// Images returns the reference images of one signer, nil if unknown.
func (p *Pool) Images(signerID int64) [][]byte {
	return p.images[signerID]
}
