// Package serialization implements the .grad file format for model state dictionaries.
//
// A .grad file stores named float64 tensors together with a JSON header:
//
//	Format Structure:
//	  0x00 [4 bytes:  Magic "GRAD"]
//	  0x04 [4 bytes:  Version (uint32 LE)]
//	  0x08 [4 bytes:  Flags (uint32 LE)]
//	  0x0C [4 bytes:  Reserved]
//	  0x10 [8 bytes:  Header size (uint64 LE)]
//	  0x18 [8 bytes:  Data size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the data section]
//	  0x40 [Header: JSON metadata]
//	       [Tensor data: float64 little-endian, 64-byte aligned]
//
// Tensors are written in lexicographic name order, so a state dictionary always
// produces the same data section.
//
// Example usage:
//
//	w, err := serialization.NewWriter("model.grad")
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	err = w.WriteStateDict(stateDict, "Sequential", nil)
//
//	r, err := serialization.NewReader("model.grad")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	stateDict, err := r.ReadStateDict()
package serialization
