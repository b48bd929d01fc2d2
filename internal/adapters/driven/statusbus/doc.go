// Package statusbus holds StatusBus implementations.
//
//   - memory: in-process fan-out, the default
//   - redis: pub/sub across processes via Redis
//   - polling: reads the job store on an interval, for hosts without a broker
package statusbus
