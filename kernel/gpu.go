package kernel

// Device names the two execution backends. No kernel entry point takes a
// Device: the only GPU path is GPUIntegrator.IntegrateMono, and every other
// kernel always runs on CPU via bulkParallelMap.
type Device int

const (
	DeviceCPU Device = iota
	DeviceGPU
)
