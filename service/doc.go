// Package service defines the contracts a supervised unit of work
// implements.
//
// A Service is built by a constructor that receives the shared
// dependencies value plus either the report Sender (Constructor) or the
// shared report receiver (ReceiverConstructor). The constructor runs again
// before every restart, so each run starts from fresh state.
//
//	func NewPoller(ctx context.Context, deps Deps, errs *reports.Sender) (service.Service, error) {
//	    return service.Func(func(ctx context.Context) error {
//	        return deps.Poll(ctx, errs)
//	    }), nil
//	}
package service
