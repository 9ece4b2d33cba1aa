// Package compute converges the machine shell of a VM: existence,
// processor topology, memory policy, firmware settings and virtual TPM
// state. It never powers machines on or off; the start decision belongs
// to the engine.
package compute
