// Package mmio maps the register window of a physical accelerator into the
// process so a driver can reach it as an accel.RegisterPort.
package mmio

// DevMem is the physical memory device the window is usually mapped from.
const DevMem = "/dev/mem"
